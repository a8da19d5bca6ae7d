// Package board provides create, read, update and delete operations for
// projects, boards, lists and cards. Creation and deletion go through the
// reorder package so every container stays numbered 1..n.
package board

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/boardsync/internal/models"
	"github.com/zulandar/boardsync/internal/reorder"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("board: not found")
	// ErrInvalidInput is returned for missing or oversized fields.
	ErrInvalidInput = errors.New("board: invalid input")
)

const (
	maxNameLen  = 128
	maxTitleLen = 256
	maxURLLen   = 512
)

// Scope locates an entity for broadcasting.
type Scope struct {
	ProjectID uint
	BoardID   uint
}

// CardInput holds the fields of a new card.
type CardInput struct {
	Title       string
	Description string
	ImageURL    string
}

// CardUpdate holds optional card edits; nil fields are left alone.
type CardUpdate struct {
	Title       *string
	Description *string
	ImageURL    *string
}

// CreateProject creates a project.
func CreateProject(db *gorm.DB, name string) (*models.Project, error) {
	name, err := required("name", name, maxNameLen)
	if err != nil {
		return nil, fmt.Errorf("board: create project: %w", err)
	}
	p := models.Project{Name: name}
	if err := db.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("board: create project: %w", err)
	}
	return &p, nil
}

// ListProjects returns every project ordered by id.
func ListProjects(db *gorm.DB) ([]models.Project, error) {
	var projects []models.Project
	if err := db.Order("id ASC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("board: list projects: %w", err)
	}
	return projects, nil
}

// CreateBoard appends a board to projectID.
func CreateBoard(db *gorm.DB, projectID uint, name string) (*models.Board, error) {
	name, err := required("name", name, maxNameLen)
	if err != nil {
		return nil, fmt.Errorf("board: create board: %w", err)
	}
	var b models.Board
	err = reorder.Insert(db, reorder.KindBoard, projectID, func(tx *gorm.DB, seqNo int) error {
		b = models.Board{ProjectID: projectID, Name: name, SeqNo: seqNo}
		return tx.Create(&b).Error
	})
	if err != nil {
		return nil, fmt.Errorf("board: create board: %w", notFound(err))
	}
	return &b, nil
}

// ListBoards returns projectID's boards in order.
func ListBoards(db *gorm.DB, projectID uint) ([]models.Board, error) {
	if err := exists(db, &models.Project{}, projectID); err != nil {
		return nil, fmt.Errorf("board: list boards: %w", err)
	}
	var boards []models.Board
	if err := db.Where("project_id = ?", projectID).Order("seq_no ASC, id ASC").Find(&boards).Error; err != nil {
		return nil, fmt.Errorf("board: list boards: %w", err)
	}
	return boards, nil
}

// GetBoard returns a board with its lists and their cards, all in order.
func GetBoard(db *gorm.DB, id uint) (*models.Board, error) {
	var b models.Board
	err := db.
		Preload("Lists", func(tx *gorm.DB) *gorm.DB { return tx.Order("seq_no ASC, id ASC") }).
		Preload("Lists.Cards", func(tx *gorm.DB) *gorm.DB { return tx.Order("seq_no ASC, id ASC") }).
		First(&b, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: board %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("board: get board %d: %w", id, err)
	}
	return &b, nil
}

// DeleteBoard deletes a board with its lists and cards and closes the gap
// in its project.
func DeleteBoard(db *gorm.DB, id uint) (Scope, error) {
	projectID, err := reorder.Remove(db, reorder.KindBoard, id, func(tx *gorm.DB) error {
		lists := tx.Model(&models.List{}).Select("id").Where("board_id = ?", id)
		if err := tx.Where("list_id IN (?)", lists).Delete(&models.Card{}).Error; err != nil {
			return fmt.Errorf("delete cards: %w", err)
		}
		if err := tx.Where("board_id = ?", id).Delete(&models.List{}).Error; err != nil {
			return fmt.Errorf("delete lists: %w", err)
		}
		return nil
	})
	if err != nil {
		return Scope{}, fmt.Errorf("board: delete board: %w", notFound(err))
	}
	return Scope{ProjectID: projectID, BoardID: id}, nil
}

// CreateList appends a list to boardID.
func CreateList(db *gorm.DB, boardID uint, title string) (*models.List, Scope, error) {
	title, err := required("title", title, maxTitleLen)
	if err != nil {
		return nil, Scope{}, fmt.Errorf("board: create list: %w", err)
	}
	var l models.List
	err = reorder.Insert(db, reorder.KindList, boardID, func(tx *gorm.DB, seqNo int) error {
		l = models.List{BoardID: boardID, Title: title, SeqNo: seqNo}
		return tx.Create(&l).Error
	})
	if err != nil {
		return nil, Scope{}, fmt.Errorf("board: create list: %w", notFound(err))
	}
	scope, err := ScopeOfBoard(db, boardID)
	return &l, scope, err
}

// RenameList changes a list's title.
func RenameList(db *gorm.DB, id uint, title string) (*models.List, Scope, error) {
	title, err := required("title", title, maxTitleLen)
	if err != nil {
		return nil, Scope{}, fmt.Errorf("board: rename list: %w", err)
	}
	result := db.Model(&models.List{}).Where("id = ?", id).Update("title", title)
	if result.Error != nil {
		return nil, Scope{}, fmt.Errorf("board: rename list %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, Scope{}, fmt.Errorf("%w: list %d", ErrNotFound, id)
	}
	var l models.List
	if err := db.First(&l, id).Error; err != nil {
		return nil, Scope{}, fmt.Errorf("board: rename list %d: %w", id, err)
	}
	scope, err := ScopeOfBoard(db, l.BoardID)
	return &l, scope, err
}

// DeleteList deletes a list with its cards and closes the gap in its board.
func DeleteList(db *gorm.DB, id uint) (Scope, error) {
	boardID, err := reorder.Remove(db, reorder.KindList, id, func(tx *gorm.DB) error {
		if err := tx.Where("list_id = ?", id).Delete(&models.Card{}).Error; err != nil {
			return fmt.Errorf("delete cards: %w", err)
		}
		return nil
	})
	if err != nil {
		return Scope{}, fmt.Errorf("board: delete list: %w", notFound(err))
	}
	return ScopeOfBoard(db, boardID)
}

// CreateCard appends a card to listID.
func CreateCard(db *gorm.DB, listID uint, in CardInput) (*models.Card, Scope, error) {
	title, err := required("title", in.Title, maxTitleLen)
	if err != nil {
		return nil, Scope{}, fmt.Errorf("board: create card: %w", err)
	}
	if len(in.ImageURL) > maxURLLen {
		return nil, Scope{}, fmt.Errorf("board: create card: %w: imageUrl longer than %d", ErrInvalidInput, maxURLLen)
	}
	var c models.Card
	err = reorder.Insert(db, reorder.KindCard, listID, func(tx *gorm.DB, seqNo int) error {
		c = models.Card{ListID: listID, Title: title, Description: in.Description, ImageURL: in.ImageURL, SeqNo: seqNo}
		return tx.Create(&c).Error
	})
	if err != nil {
		return nil, Scope{}, fmt.Errorf("board: create card: %w", notFound(err))
	}
	scope, err := ScopeOfList(db, listID)
	return &c, scope, err
}

// GetCard returns one card.
func GetCard(db *gorm.DB, id uint) (*models.Card, error) {
	var c models.Card
	if err := db.First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: card %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("board: get card %d: %w", id, err)
	}
	return &c, nil
}

// UpdateCard applies the non-nil fields of u.
func UpdateCard(db *gorm.DB, id uint, u CardUpdate) (*models.Card, Scope, error) {
	updates := map[string]interface{}{}
	if u.Title != nil {
		title, err := required("title", *u.Title, maxTitleLen)
		if err != nil {
			return nil, Scope{}, fmt.Errorf("board: update card: %w", err)
		}
		updates["title"] = title
	}
	if u.Description != nil {
		updates["description"] = *u.Description
	}
	if u.ImageURL != nil {
		if len(*u.ImageURL) > maxURLLen {
			return nil, Scope{}, fmt.Errorf("board: update card: %w: imageUrl longer than %d", ErrInvalidInput, maxURLLen)
		}
		updates["image_url"] = *u.ImageURL
	}
	if len(updates) == 0 {
		return nil, Scope{}, fmt.Errorf("board: update card: %w: nothing to update", ErrInvalidInput)
	}

	result := db.Model(&models.Card{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, Scope{}, fmt.Errorf("board: update card %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, Scope{}, fmt.Errorf("%w: card %d", ErrNotFound, id)
	}
	c, err := GetCard(db, id)
	if err != nil {
		return nil, Scope{}, err
	}
	scope, err := ScopeOfList(db, c.ListID)
	return c, scope, err
}

// DeleteCard deletes a card and closes the gap in its list.
func DeleteCard(db *gorm.DB, id uint) (Scope, error) {
	listID, err := reorder.Remove(db, reorder.KindCard, id, nil)
	if err != nil {
		return Scope{}, fmt.Errorf("board: delete card: %w", notFound(err))
	}
	return ScopeOfList(db, listID)
}

// ScopeOfBoard returns the project owning boardID.
func ScopeOfBoard(db *gorm.DB, boardID uint) (Scope, error) {
	var b models.Board
	if err := db.Select("id", "project_id").First(&b, boardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Scope{}, fmt.Errorf("%w: board %d", ErrNotFound, boardID)
		}
		return Scope{}, fmt.Errorf("board: scope of board %d: %w", boardID, err)
	}
	return Scope{ProjectID: b.ProjectID, BoardID: b.ID}, nil
}

// ScopeOfList returns the board and project owning listID.
func ScopeOfList(db *gorm.DB, listID uint) (Scope, error) {
	var l models.List
	if err := db.Select("id", "board_id").First(&l, listID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Scope{}, fmt.Errorf("%w: list %d", ErrNotFound, listID)
		}
		return Scope{}, fmt.Errorf("board: scope of list %d: %w", listID, err)
	}
	return ScopeOfBoard(db, l.BoardID)
}

func required(field, value string, limit int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	if len(value) > limit {
		return "", fmt.Errorf("%w: %s longer than %d", ErrInvalidInput, field, limit)
	}
	return value, nil
}

func exists(db *gorm.DB, model interface{}, id uint) error {
	var n int64
	if err := db.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %T %d", ErrNotFound, model, id)
	}
	return nil
}

// notFound folds the reorder package's lookup failures into ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, reorder.ErrItemNotFound) || errors.Is(err, reorder.ErrContainerNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

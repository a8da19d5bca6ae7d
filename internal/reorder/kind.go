package reorder

import (
	"fmt"

	"github.com/zulandar/boardsync/internal/models"
	"gorm.io/gorm"
)

// Kind describes one ordered entity: the table its rows live in, the column
// naming their container, and the table the containers live in.
type Kind struct {
	Name            string
	Table           string
	ContainerColumn string
	ContainerTable  string

	// scope resolves the project and board an item belongs to once it sits
	// in containerID.
	scope func(tx *gorm.DB, itemID, containerID uint) (projectID, boardID uint, err error)
}

var (
	// KindCard orders cards within a list.
	KindCard = Kind{
		Name:            "card",
		Table:           "cards",
		ContainerColumn: "list_id",
		ContainerTable:  "lists",
		scope: func(tx *gorm.DB, _, listID uint) (uint, uint, error) {
			var list models.List
			if err := tx.Select("id", "board_id").Take(&list, listID).Error; err != nil {
				return 0, 0, fmt.Errorf("list %d: %w", listID, err)
			}
			projectID, err := projectOf(tx, list.BoardID)
			return projectID, list.BoardID, err
		},
	}

	// KindList orders lists within a board.
	KindList = Kind{
		Name:            "list",
		Table:           "lists",
		ContainerColumn: "board_id",
		ContainerTable:  "boards",
		scope: func(tx *gorm.DB, _, boardID uint) (uint, uint, error) {
			projectID, err := projectOf(tx, boardID)
			return projectID, boardID, err
		},
	}

	// KindBoard orders boards within a project.
	KindBoard = Kind{
		Name:            "board",
		Table:           "boards",
		ContainerColumn: "project_id",
		ContainerTable:  "projects",
		scope: func(_ *gorm.DB, boardID, projectID uint) (uint, uint, error) {
			return projectID, boardID, nil
		},
	}
)

// Kinds lists every ordered kind, containers before their children.
func Kinds() []Kind {
	return []Kind{KindBoard, KindList, KindCard}
}

func (k Kind) String() string { return k.Name }

func projectOf(tx *gorm.DB, boardID uint) (uint, error) {
	var board models.Board
	if err := tx.Select("id", "project_id").Take(&board, boardID).Error; err != nil {
		return 0, fmt.Errorf("board %d: %w", boardID, err)
	}
	return board.ProjectID, nil
}

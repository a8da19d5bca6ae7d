// Package models defines the GORM models for boardsync.
package models

import "time"

// Project is the top-level tenant scope. Boards are ordered within it.
type Project struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Board belongs to a Project and owns an ordered collection of Lists.
type Board struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID uint      `gorm:"not null;index:idx_boards_project_seq,priority:1" json:"projectId"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	SeqNo     int       `gorm:"not null;index:idx_boards_project_seq,priority:2" json:"seqNo"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Lists []List `gorm:"foreignKey:BoardID" json:"lists,omitempty"`
}

// List belongs to a Board and owns an ordered collection of Cards.
type List struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	BoardID   uint      `gorm:"not null;index:idx_lists_board_seq,priority:1" json:"boardId"`
	Title     string    `gorm:"size:256;not null" json:"title"`
	SeqNo     int       `gorm:"not null;index:idx_lists_board_seq,priority:2" json:"seqNo"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Cards []Card `gorm:"foreignKey:ListID" json:"cards,omitempty"`
}

// Card belongs to a List.
type Card struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ListID      uint      `gorm:"not null;index:idx_cards_list_seq,priority:1" json:"listId"`
	Title       string    `gorm:"size:256;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	ImageURL    string    `gorm:"size:512" json:"imageUrl,omitempty"`
	SeqNo       int       `gorm:"not null;index:idx_cards_list_seq,priority:2" json:"seqNo"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

package board

import (
	"errors"
	"strings"
	"testing"

	"github.com/zulandar/boardsync/internal/config"
	"github.com/zulandar/boardsync/internal/db"
	"github.com/zulandar/boardsync/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := db.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close(gormDB) })
	return gormDB
}

func seed(t *testing.T, gormDB *gorm.DB) (*models.Project, *models.Board, *models.List) {
	t.Helper()
	p, err := CreateProject(gormDB, "acme")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	b, err := CreateBoard(gormDB, p.ID, "roadmap")
	if err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}
	l, _, err := CreateList(gormDB, b.ID, "todo")
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	return p, b, l
}

func TestCreate_AssignsNextSeqNo(t *testing.T) {
	gormDB := openTestDB(t)
	p, b, l := seed(t, gormDB)

	b2, err := CreateBoard(gormDB, p.ID, "ops")
	if err != nil {
		t.Fatal(err)
	}
	if b.SeqNo != 1 || b2.SeqNo != 2 {
		t.Errorf("board seqNos = %d, %d; want 1, 2", b.SeqNo, b2.SeqNo)
	}

	for i := 1; i <= 3; i++ {
		c, scope, err := CreateCard(gormDB, l.ID, CardInput{Title: "card"})
		if err != nil {
			t.Fatalf("CreateCard: %v", err)
		}
		if c.SeqNo != i {
			t.Errorf("card %d SeqNo = %d", i, c.SeqNo)
		}
		if scope.ProjectID != p.ID || scope.BoardID != b.ID {
			t.Errorf("scope = %+v", scope)
		}
	}
}

func TestCreate_Validation(t *testing.T) {
	gormDB := openTestDB(t)
	_, b, l := seed(t, gormDB)

	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{"empty project name", func() error { _, err := CreateProject(gormDB, "  "); return err }, ErrInvalidInput},
		{"long board name", func() error { _, err := CreateBoard(gormDB, 1, strings.Repeat("x", 200)); return err }, ErrInvalidInput},
		{"board in missing project", func() error { _, err := CreateBoard(gormDB, 999, "x"); return err }, ErrNotFound},
		{"list in missing board", func() error { _, _, err := CreateList(gormDB, 999, "x"); return err }, ErrNotFound},
		{"empty list title", func() error { _, _, err := CreateList(gormDB, b.ID, ""); return err }, ErrInvalidInput},
		{"card in missing list", func() error { _, _, err := CreateCard(gormDB, 999, CardInput{Title: "x"}); return err }, ErrNotFound},
		{"card image url too long", func() error {
			_, _, err := CreateCard(gormDB, l.ID, CardInput{Title: "x", ImageURL: strings.Repeat("u", 600)})
			return err
		}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGetBoard_OrdersListsAndCards(t *testing.T) {
	gormDB := openTestDB(t)
	_, b, l1 := seed(t, gormDB)
	l2, _, _ := CreateList(gormDB, b.ID, "doing")
	CreateCard(gormDB, l1.ID, CardInput{Title: "a"})
	CreateCard(gormDB, l1.ID, CardInput{Title: "b"})
	// Reverse list order behind the API's back.
	gormDB.Model(&models.List{}).Where("id = ?", l1.ID).Update("seq_no", 2)
	gormDB.Model(&models.List{}).Where("id = ?", l2.ID).Update("seq_no", 1)

	got, err := GetBoard(gormDB, b.ID)
	if err != nil {
		t.Fatalf("GetBoard: %v", err)
	}
	if len(got.Lists) != 2 || got.Lists[0].ID != l2.ID {
		t.Fatalf("lists = %+v", got.Lists)
	}
	cards := got.Lists[1].Cards
	if len(cards) != 2 || cards[0].Title != "a" || cards[1].Title != "b" {
		t.Errorf("cards = %+v", cards)
	}

	if _, err := GetBoard(gormDB, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListBoards(t *testing.T) {
	gormDB := openTestDB(t)
	p, _, _ := seed(t, gormDB)
	CreateBoard(gormDB, p.ID, "second")

	boards, err := ListBoards(gormDB, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(boards) != 2 || boards[0].Name != "roadmap" || boards[1].Name != "second" {
		t.Errorf("boards = %+v", boards)
	}
	if _, err := ListBoards(gormDB, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateCard(t *testing.T) {
	gormDB := openTestDB(t)
	_, _, l := seed(t, gormDB)
	c, _, _ := CreateCard(gormDB, l.ID, CardInput{Title: "draft", Description: "d"})

	title := "final"
	got, _, err := UpdateCard(gormDB, c.ID, CardUpdate{Title: &title})
	if err != nil {
		t.Fatalf("UpdateCard: %v", err)
	}
	if got.Title != "final" || got.Description != "d" || got.SeqNo != c.SeqNo {
		t.Errorf("card = %+v", got)
	}

	if _, _, err := UpdateCard(gormDB, c.ID, CardUpdate{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty update err = %v", err)
	}
	if _, _, err := UpdateCard(gormDB, 999, CardUpdate{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing card err = %v", err)
	}
}

func TestRenameList(t *testing.T) {
	gormDB := openTestDB(t)
	p, b, l := seed(t, gormDB)
	got, scope, err := RenameList(gormDB, l.ID, "backlog")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "backlog" || scope.BoardID != b.ID || scope.ProjectID != p.ID {
		t.Errorf("list = %+v scope = %+v", got, scope)
	}
	if _, _, err := RenameList(gormDB, 999, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteCard_Compacts(t *testing.T) {
	gormDB := openTestDB(t)
	_, _, l := seed(t, gormDB)
	a, _, _ := CreateCard(gormDB, l.ID, CardInput{Title: "a"})
	CreateCard(gormDB, l.ID, CardInput{Title: "b"})
	CreateCard(gormDB, l.ID, CardInput{Title: "c"})

	if _, err := DeleteCard(gormDB, a.ID); err != nil {
		t.Fatalf("DeleteCard: %v", err)
	}
	var cards []models.Card
	gormDB.Where("list_id = ?", l.ID).Order("seq_no").Find(&cards)
	if len(cards) != 2 || cards[0].Title != "b" || cards[0].SeqNo != 1 || cards[1].SeqNo != 2 {
		t.Errorf("cards = %+v", cards)
	}
	if _, err := DeleteCard(gormDB, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestDeleteList_CascadesAndCompacts(t *testing.T) {
	gormDB := openTestDB(t)
	_, b, l1 := seed(t, gormDB)
	l2, _, _ := CreateList(gormDB, b.ID, "doing")
	CreateCard(gormDB, l1.ID, CardInput{Title: "a"})

	scope, err := DeleteList(gormDB, l1.ID)
	if err != nil {
		t.Fatalf("DeleteList: %v", err)
	}
	if scope.BoardID != b.ID {
		t.Errorf("scope = %+v", scope)
	}
	var cardCount int64
	gormDB.Model(&models.Card{}).Count(&cardCount)
	if cardCount != 0 {
		t.Errorf("cards left = %d, want 0", cardCount)
	}
	var remaining models.List
	gormDB.First(&remaining, l2.ID)
	if remaining.SeqNo != 1 {
		t.Errorf("remaining list SeqNo = %d, want 1", remaining.SeqNo)
	}
}

func TestDeleteBoard_Cascades(t *testing.T) {
	gormDB := openTestDB(t)
	p, b, l := seed(t, gormDB)
	b2, _ := CreateBoard(gormDB, p.ID, "ops")
	CreateCard(gormDB, l.ID, CardInput{Title: "a"})

	scope, err := DeleteBoard(gormDB, b.ID)
	if err != nil {
		t.Fatalf("DeleteBoard: %v", err)
	}
	if scope.ProjectID != p.ID || scope.BoardID != b.ID {
		t.Errorf("scope = %+v", scope)
	}
	for _, m := range []interface{}{&models.List{}, &models.Card{}} {
		var n int64
		gormDB.Model(m).Count(&n)
		if n != 0 {
			t.Errorf("%T rows left = %d", m, n)
		}
	}
	var left models.Board
	gormDB.First(&left, b2.ID)
	if left.SeqNo != 1 {
		t.Errorf("remaining board SeqNo = %d, want 1", left.SeqNo)
	}
}

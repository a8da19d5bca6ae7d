package reorder

import (
	"errors"
	"testing"

	"github.com/zulandar/boardsync/internal/models"
	"github.com/zulandar/boardsync/internal/sequence"
	"gorm.io/gorm"
)

func TestInsert_AppendsAtEnd(t *testing.T) {
	f := newFixture(t)

	var card models.Card
	err := Insert(f.db, KindCard, f.lists[1].ID, func(tx *gorm.DB, seqNo int) error {
		card = models.Card{ListID: f.lists[1].ID, Title: "Z", SeqNo: seqNo}
		return tx.Create(&card).Error
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if card.SeqNo != 3 {
		t.Errorf("SeqNo = %d, want 3", card.SeqNo)
	}
	if got, want := f.order(t, 1), "X:1 Y:2 Z:3"; got != want {
		t.Errorf("list 2 = %q, want %q", got, want)
	}
}

func TestInsert_MissingContainer(t *testing.T) {
	f := newFixture(t)
	err := Insert(f.db, KindCard, 9999, func(tx *gorm.DB, seqNo int) error {
		t.Fatal("create must not run")
		return nil
	})
	if !errors.Is(err, ErrContainerNotFound) {
		t.Errorf("err = %v, want ErrContainerNotFound", err)
	}
}

func TestRemove_CompactsSiblings(t *testing.T) {
	f := newFixture(t)

	containerID, err := Remove(f.db, KindCard, f.cards["B"], nil)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if containerID != f.lists[0].ID {
		t.Errorf("containerID = %d, want %d", containerID, f.lists[0].ID)
	}
	if got, want := f.order(t, 0), "A:1 C:2 D:3"; got != want {
		t.Errorf("list 1 = %q, want %q", got, want)
	}
}

func TestRemove_CascadeFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	_, err := Remove(f.db, KindCard, f.cards["A"], func(*gorm.DB) error {
		return errors.New("cascade failed")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got, want := f.order(t, 0), "A:1 B:2 C:3 D:4"; got != want {
		t.Errorf("list 1 = %q, want %q", got, want)
	}
}

func TestRemove_MissingItem(t *testing.T) {
	f := newFixture(t)
	if _, err := Remove(f.db, KindCard, 9999, nil); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("err = %v, want ErrItemNotFound", err)
	}
}

func TestCompact_RepairsGapsAndDuplicates(t *testing.T) {
	f := newFixture(t)
	f.db.Model(&models.Card{}).Where("id = ?", f.cards["C"]).Update("seq_no", 2)
	f.db.Model(&models.Card{}).Where("id = ?", f.cards["D"]).Update("seq_no", 9)

	changed, err := Compact(f.db, KindCard, f.lists[0].ID)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if changed != 2 {
		t.Errorf("changed = %d, want 2", changed)
	}
	sibs, _ := Siblings(f.db, KindCard, f.lists[0].ID)
	if !sequence.Contiguous(sibs) {
		t.Errorf("not contiguous after compact: %s", f.order(t, 0))
	}
}

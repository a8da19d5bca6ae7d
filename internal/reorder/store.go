package reorder

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/boardsync/internal/sequence"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// itemRow is the ordering slice of any kind's row.
type itemRow struct {
	ID          uint
	ContainerID uint
	SeqNo       int
}

// forUpdate adds a row lock on MySQL. SQLite serializes writers at BEGIN
// IMMEDIATE and has no row locks.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// loadItem reads the current container and seqNo of itemID.
func loadItem(tx *gorm.DB, kind Kind, itemID uint) (itemRow, error) {
	var row itemRow
	err := forUpdate(tx).Table(kind.Table).
		Select("id", kind.ContainerColumn+" AS container_id", "seq_no").
		Where("id = ?", itemID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, fmt.Errorf("%w: %s %d", ErrItemNotFound, kind, itemID)
	}
	return row, err
}

// containerExists checks the parent row of a kind.
func containerExists(tx *gorm.DB, kind Kind, containerID uint) error {
	var n int64
	if err := tx.Table(kind.ContainerTable).Where("id = ?", containerID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s container %d", ErrContainerNotFound, kind, containerID)
	}
	return nil
}

// Siblings reads every child of containerID ordered by seqNo.
func Siblings(tx *gorm.DB, kind Kind, containerID uint) ([]sequence.Sibling, error) {
	var sibs []sequence.Sibling
	err := forUpdate(tx).Table(kind.Table).
		Select("id", "seq_no").
		Where(kind.ContainerColumn+" = ?", containerID).
		Order("seq_no, id").
		Find(&sibs).Error
	if err != nil {
		return nil, fmt.Errorf("siblings of %s container %d: %w", kind, containerID, err)
	}
	return sibs, nil
}

// apply writes each assignment, failing if any target row is gone.
func apply(tx *gorm.DB, kind Kind, assignments []sequence.Assignment) error {
	now := time.Now()
	for _, a := range assignments {
		updates := map[string]interface{}{
			"seq_no":     a.SeqNo,
			"updated_at": now,
		}
		if a.Moved {
			updates[kind.ContainerColumn] = a.ContainerID
		}
		result := tx.Table(kind.Table).Where("id = ?", a.ItemID).Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("update %s %d: %w", kind, a.ItemID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s %d vanished mid-transaction", ErrItemNotFound, kind, a.ItemID)
		}
	}
	return nil
}

// Insert runs create with the next free seqNo in containerID, inside a
// transaction so concurrent creators never share a position. create must use
// the tx it is given.
func Insert(db *gorm.DB, kind Kind, containerID uint, create func(tx *gorm.DB, seqNo int) error) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := containerExists(tx, kind, containerID); err != nil {
			return err
		}
		sibs, err := Siblings(tx, kind, containerID)
		if err != nil {
			return err
		}
		return create(tx, sequence.NextSeqNo(sibs))
	})
	if err != nil {
		return fmt.Errorf("reorder: insert %s: %w", kind, classify(err))
	}
	return nil
}

// Remove deletes itemID and closes the gap it leaves. cascade runs first in
// the same transaction to delete the item's own children.
func Remove(db *gorm.DB, kind Kind, itemID uint, cascade func(tx *gorm.DB) error) (containerID uint, err error) {
	err = db.Transaction(func(tx *gorm.DB) error {
		row, err := loadItem(tx, kind, itemID)
		if err != nil {
			return err
		}
		containerID = row.ContainerID

		if cascade != nil {
			if err := cascade(tx); err != nil {
				return err
			}
		}
		if err := tx.Exec("DELETE FROM "+kind.Table+" WHERE id = ?", itemID).Error; err != nil {
			return fmt.Errorf("delete %s %d: %w", kind, itemID, err)
		}

		sibs, err := Siblings(tx, kind, row.ContainerID)
		if err != nil {
			return err
		}
		return apply(tx, kind, sequence.PlanRemove(row.ContainerID, itemID, row.SeqNo, sibs))
	})
	if err != nil {
		return 0, fmt.Errorf("reorder: remove %s: %w", kind, classify(err))
	}
	return containerID, nil
}

// Compact renumbers containerID's children to 1..n in one transaction and
// returns how many rows changed.
func Compact(db *gorm.DB, kind Kind, containerID uint) (int, error) {
	var changed int
	err := db.Transaction(func(tx *gorm.DB) error {
		sibs, err := Siblings(tx, kind, containerID)
		if err != nil {
			return err
		}
		fixes := sequence.Compact(containerID, sibs)
		changed = len(fixes)
		return apply(tx, kind, fixes)
	})
	if err != nil {
		return 0, fmt.Errorf("reorder: compact %s container %d: %w", kind, containerID, classify(err))
	}
	return changed, nil
}

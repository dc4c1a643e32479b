package services

import (
	"context"
	"fmt"
	"slices"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
)

// applyChanges runs changes in order, or their inverses in reverse order.
func applyChanges(ctx context.Context, tx driven.CellTx, changes []domain.Change, forward bool) error {
	if forward {
		for _, c := range changes {
			if err := applyChange(ctx, tx, c, true); err != nil {
				return err
			}
		}
		return nil
	}
	for i := len(changes) - 1; i >= 0; i-- {
		if err := applyChange(ctx, tx, changes[i], false); err != nil {
			return err
		}
	}
	return nil
}

// applyChange applies one change forward or inverted.
func applyChange(ctx context.Context, tx driven.CellTx, c domain.Change, forward bool) error {
	if err := c.Validate(); err != nil {
		return err
	}

	var err error
	switch c.Kind {
	case domain.ChangeCellCreated:
		if forward {
			err = insertState(ctx, tx, *c.Cell)
		} else {
			err = tx.DeleteCell(ctx, c.Cell.Cell.ID)
		}

	case domain.ChangeCellDeleted:
		if forward {
			err = tx.DeleteCell(ctx, c.Cell.Cell.ID)
		} else {
			err = insertState(ctx, tx, *c.Cell)
		}

	case domain.ChangeCellModified:
		diff := c.After
		if !forward {
			diff = c.Before
		}
		err = applyDiff(ctx, tx, c.CellID, *diff)

	case domain.ChangeCellSplit:
		if forward {
			for _, child := range c.Children {
				if err = insertState(ctx, tx, child); err != nil {
					break
				}
			}
		} else {
			for _, child := range slices.Backward(c.Children) {
				if err = tx.DeleteCell(ctx, child.Cell.ID); err != nil {
					break
				}
			}
			if err == nil {
				err = restoreState(ctx, tx, *c.Parent)
			}
		}

	case domain.ChangeCellMerged:
		if forward {
			for _, m := range c.Merged {
				if err = tx.DeleteCell(ctx, m.Cell.ID); err != nil {
					break
				}
			}
			if err == nil {
				err = insertState(ctx, tx, *c.Result)
			}
		} else {
			if err = tx.DeleteCell(ctx, c.Result.Cell.ID); err == nil {
				for _, m := range c.Merged {
					if err = insertState(ctx, tx, m); err != nil {
						break
					}
				}
			}
		}

	case domain.ChangeRelationshipCreated, domain.ChangeRelationshipDeleted:
		rel := *c.Relationship
		if (c.Kind == domain.ChangeRelationshipCreated) == forward {
			err = tx.InsertRelationship(ctx, rel)
		} else {
			err = tx.DeleteRelationship(ctx, rel.From, rel.To)
		}

	default:
		err = fmt.Errorf("%w: unknown change kind %q", domain.ErrCorruptJournal, c.Kind)
	}

	if err != nil {
		return fmt.Errorf("applying %s: %w", c.Kind, err)
	}
	return nil
}

func insertState(ctx context.Context, tx driven.CellTx, state domain.CellState) error {
	_, err := tx.InsertCell(ctx, state)
	return err
}

// restoreState overwrites an existing cell with a recorded state.
func restoreState(ctx context.Context, tx driven.CellTx, state domain.CellState) error {
	cell := state.Cell.Clone()
	cell.Children = nil
	return tx.WriteContent(ctx, &cell, state.Content)
}

// applyDiff writes a diff onto a stored cell. A location change moves the
// content and discards the old sidecar.
func applyDiff(ctx context.Context, tx driven.CellTx, id domain.CellID, diff domain.CellDiff) error {
	cell, err := tx.GetCell(ctx, id)
	if err != nil {
		return err
	}
	prevLocation, prevPath := cell.Location, cell.Path

	diff.ApplyMetadata(cell)
	if diff.Content != nil {
		err = tx.WriteContent(ctx, cell, *diff.Content)
	} else {
		err = tx.UpdateCell(ctx, *cell)
	}
	if err != nil {
		return err
	}

	if diff.Location != nil && (prevLocation != cell.Location || !samePath(prevPath, cell.Path)) {
		return tx.DiscardFile(ctx, prevLocation, prevPath)
	}
	return nil
}

func samePath(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

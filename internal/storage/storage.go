package storage

import "readScope/internal/model"

// Storage defines a sink for balance snapshots.
type Storage interface {
	PutBalanceBatch(snapshots []model.BalanceSnapshot) error
}

// Multi fans a batch out to several sinks and stops at the first failure.
type Multi []Storage

func (m Multi) PutBalanceBatch(snapshots []model.BalanceSnapshot) error {
	for _, s := range m {
		if err := s.PutBalanceBatch(snapshots); err != nil {
			return err
		}
	}
	return nil
}

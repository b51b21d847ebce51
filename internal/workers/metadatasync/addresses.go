package metadatasync

import (
	"context"
	"fmt"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// AddressSynchronizer mirrors the wallet's own addresses into the ledger.
// Rows are only ever added or refreshed; an address the node stops reporting
// stays in the ledger because its balance history is still live.
type AddressSynchronizer struct {
	node      NodeClient
	addresses AddressStore
	logger    *logger.Logger
}

// NewAddressSynchronizer creates a new address synchronizer
func NewAddressSynchronizer(node NodeClient, addresses AddressStore, log *logger.Logger) *AddressSynchronizer {
	return &AddressSynchronizer{
		node:      node,
		addresses: addresses,
		logger:    log,
	}
}

// Sync upserts every own address reported by the node and re-extends expired
// ones so deposit addresses never go stale.
func (s *AddressSynchronizer) Sync(ctx context.Context) error {
	infos, err := s.node.AddrList(ctx, true)
	if err != nil {
		return fmt.Errorf("addr_list: %w", err)
	}

	var failed int
	for _, info := range infos {
		address := &entities.Address{
			ID:         info.Address,
			Type:       entities.AddressType(info.Type),
			Comment:    info.Comment,
			CreateTime: info.CreateTime,
			Expired:    info.Expired,
			Identity:   info.Identity,
			OwnID:      info.OwnID,
			WalletID:   info.WalletID,
		}
		if err := s.addresses.Sync(ctx, address); err != nil {
			failed++
			s.logger.Error("Failed to sync address", "address", info.Address, "error", err)
			continue
		}

		if info.Expired {
			if err := s.node.EditAddress(ctx, info.Address, "never"); err != nil {
				s.logger.Warn("Failed to extend expired address", "address", info.Address, "error", err)
			} else {
				s.logger.Info("Extended expired address", "address", info.Address)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("address sync: %d of %d addresses failed", failed, len(infos))
	}
	return nil
}

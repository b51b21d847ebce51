package entities

import "time"

// Balance fields compared by the auditor.
const (
	BalanceFieldAvailable = "available"
	BalanceFieldLocked    = "locked"
)

// BalanceDiscrepancy is one asset whose ledger aggregate disagrees with the
// wallet node totals.
type BalanceDiscrepancy struct {
	AssetID      int64  `json:"asset_id"`
	Field        string `json:"field"`
	NodeAmount   int64  `json:"node_amount"`
	LedgerAmount int64  `json:"ledger_amount"`
}

// Difference returns node minus ledger in groths.
func (d BalanceDiscrepancy) Difference() int64 {
	return d.NodeAmount - d.LedgerAmount
}

// AuditReport is the result of one reconciliation pass comparing the wallet
// node's per-asset totals against the ledger's aggregated balance maps.
type AuditReport struct {
	CheckedAt     time.Time            `json:"checked_at"`
	AssetsChecked int                  `json:"assets_checked"`
	Discrepancies []BalanceDiscrepancy `json:"discrepancies,omitempty"`
}

// Clean reports whether node and ledger agreed on every asset.
func (r *AuditReport) Clean() bool {
	return len(r.Discrepancies) == 0
}

// ConsistencyViolation is raised before submitting a withdrawal when the
// sender's locked balance no longer covers the withdrawals already in flight
// against it.
type ConsistencyViolation struct {
	Address  string `json:"address"`
	AssetID  int64  `json:"asset_id"`
	Locked   int64  `json:"locked"`
	Expected int64  `json:"expected"`
}

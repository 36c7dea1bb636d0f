package transferstore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/chainflux/tokenbridge/pkg/transfer"
)

// TransferDao is a data access object that maps directly to the 'transfers'
// table in PostgreSQL.
type TransferDao struct {
	bun.BaseModel `bun:"table:transfers,alias:t"`
	ID            string    `bun:"id,pk,type:varchar(64)"`
	UserID        string    `bun:"user_id,notnull,type:varchar(255)"`
	Token         string    `bun:"token,notnull,type:varchar(32)"`
	FromChain     string    `bun:"from_chain,notnull,type:varchar(32)"`
	ToChain       string    `bun:"to_chain,notnull,type:varchar(32)"`
	Amount        string    `bun:"amount,notnull,type:numeric(38,18)"`
	LockID        *string   `bun:"lock_id,type:varchar(128)"`
	SrcTxHash     *string   `bun:"src_tx_hash,type:varchar(128)"`
	DstTxHash     *string   `bun:"dst_tx_hash,type:varchar(128)"`
	Status        string    `bun:"status,notnull,type:varchar(16)"`
	ErrorMsg      *string   `bun:"error_msg,type:text"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

// toTransferDao converts a domain transfer to its DAO representation.
func toTransferDao(t *transfer.Transfer) *TransferDao {
	dao := &TransferDao{
		ID:        t.ID,
		UserID:    t.UserID,
		Token:     t.Token,
		FromChain: t.FromChain,
		ToChain:   t.ToChain,
		Amount:    t.Amount.String(),
		Status:    string(t.Status),
	}

	if t.LockID != "" {
		dao.LockID = &t.LockID
	}
	if t.SourceTxHash != "" {
		dao.SrcTxHash = &t.SourceTxHash
	}
	if t.DestTxHash != "" {
		dao.DstTxHash = &t.DestTxHash
	}
	if t.ErrorMessage != "" {
		dao.ErrorMsg = &t.ErrorMessage
	}

	return dao
}

// toTransfer converts a DAO row back to the domain transfer.
func toTransfer(dao *TransferDao) (*transfer.Transfer, error) {
	amount, err := decimal.NewFromString(dao.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored amount %q: %w", dao.Amount, err)
	}

	t := &transfer.Transfer{
		ID:        dao.ID,
		UserID:    dao.UserID,
		Token:     dao.Token,
		FromChain: dao.FromChain,
		ToChain:   dao.ToChain,
		Amount:    amount,
		Status:    transfer.Status(dao.Status),
		CreatedAt: dao.CreatedAt,
		UpdatedAt: dao.UpdatedAt,
	}

	if dao.LockID != nil {
		t.LockID = *dao.LockID
	}
	if dao.SrcTxHash != nil {
		t.SourceTxHash = *dao.SrcTxHash
	}
	if dao.DstTxHash != nil {
		t.DestTxHash = *dao.DstTxHash
	}
	if dao.ErrorMsg != nil {
		t.ErrorMessage = *dao.ErrorMsg
	}

	return t, nil
}

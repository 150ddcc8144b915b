package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/chainsafe/optimal-wallet/internal/metrics"
)

const (
	defaultPollInterval   = time.Second
	defaultReceiptTimeout = 5 * time.Minute
)

// Submitter signs raw transactions, sends them and waits for the receipt.
// It never retries; every failure after validation is reported as *SubmissionError.
type Submitter struct {
	conn           Connection
	decoder        *EventDecoder
	logger         *zap.Logger
	pollInterval   time.Duration
	receiptTimeout time.Duration
}

// SubmitterOption configures a Submitter
type SubmitterOption func(*Submitter)

// WithEventABIs sets the ABIs used to decode receipt logs
func WithEventABIs(abis ...abi.ABI) SubmitterOption {
	return func(s *Submitter) {
		s.decoder = NewEventDecoder(abis...)
	}
}

// WithPollInterval sets how often the receipt is polled
func WithPollInterval(d time.Duration) SubmitterOption {
	return func(s *Submitter) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithReceiptTimeout bounds the wait for a receipt. Zero disables the bound.
func WithReceiptTimeout(d time.Duration) SubmitterOption {
	return func(s *Submitter) {
		s.receiptTimeout = d
	}
}

// NewSubmitter creates a Submitter over conn
func NewSubmitter(conn Connection, logger *zap.Logger, opts ...SubmitterOption) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Submitter{
		conn:           conn,
		decoder:        NewEventDecoder(),
		logger:         logger.Named("submitter"),
		pollInterval:   defaultPollInterval,
		receiptTimeout: defaultReceiptTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connection returns the underlying connection
func (s *Submitter) Connection() Connection {
	return s.conn
}

// Submit signs and sends tx from opts.From and blocks until it is mined.
// A mined but reverted transaction returns both the receipt and a *SubmissionError.
func (s *Submitter) Submit(ctx context.Context, tx *RawTx, opts *TxOptions) (*Receipt, error) {
	if err := ValidateTxOptions(opts); err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, errors.New("nil transaction")
	}
	if s.conn == nil {
		return nil, &InvalidConnectionError{Reason: "submitter has no connection"}
	}

	start := time.Now()
	label := tx.Label()
	receipt, err := s.submit(ctx, tx, opts)

	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.TransactionsSubmitted.WithLabelValues(label, status).Inc()
	metrics.TransactionDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if receipt != nil {
		metrics.TransactionGasUsed.WithLabelValues(label).Observe(float64(receipt.GasUsed))
	}

	return receipt, err
}

func (s *Submitter) submit(ctx context.Context, tx *RawTx, opts *TxOptions) (*Receipt, error) {
	fail := func(hash common.Hash, err error) error {
		return &SubmissionError{Contract: tx.Contract, Method: tx.Method, TxHash: hash, Err: err}
	}

	auth, err := s.conn.Transactor(ctx, opts)
	if err != nil {
		var optsErr *InvalidTransactionOptionsError
		if errors.As(err, &optsErr) {
			return nil, err
		}
		return nil, fail(common.Hash{}, fmt.Errorf("failed to create transactor: %w", err))
	}

	value := tx.Value
	if value == nil {
		value = auth.Value
	}
	if value == nil {
		value = new(big.Int)
	}

	gas := auth.GasLimit
	if gas == 0 {
		gas, err = s.conn.EstimateGas(ctx, geth.CallMsg{
			From:     auth.From,
			To:       tx.To,
			GasPrice: auth.GasPrice,
			Value:    value,
			Data:     tx.Data,
		})
		if err != nil {
			return nil, fail(common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err))
		}
	}

	var nonce uint64
	if auth.Nonce != nil {
		nonce = auth.Nonce.Uint64()
	}

	unsigned := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: auth.GasPrice,
		Gas:      gas,
		To:       tx.To,
		Value:    value,
		Data:     tx.Data,
	})

	signed, err := auth.Signer(auth.From, unsigned)
	if err != nil {
		return nil, fail(common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err))
	}

	if err := s.conn.SendTransaction(ctx, signed); err != nil {
		return nil, fail(signed.Hash(), err)
	}

	s.logger.Debug("Transaction sent",
		zap.String("tx", tx.Label()),
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Stringer("from", auth.From),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gas))

	mined, err := s.waitMined(ctx, signed.Hash())
	if err != nil {
		return nil, fail(signed.Hash(), fmt.Errorf("failed to get receipt: %w", err))
	}

	receipt := newReceipt(auth.From, mined, s.decoder, s.logger)
	receipt.To = tx.To

	if !receipt.Status {
		s.logger.Warn("Transaction reverted",
			zap.String("tx", tx.Label()),
			zap.String("tx_hash", receipt.TxHash.Hex()),
			zap.Uint64("block", receipt.BlockNumber))
		return receipt, &SubmissionError{
			Contract: tx.Contract,
			Method:   tx.Method,
			TxHash:   receipt.TxHash,
			Receipt:  receipt,
			Err:      s.revertCause(ctx, mined, geth.CallMsg{From: auth.From, To: tx.To, Gas: gas, GasPrice: auth.GasPrice, Value: value, Data: tx.Data}),
		}
	}

	s.logger.Info("Transaction mined",
		zap.String("tx", tx.Label()),
		zap.String("tx_hash", receipt.TxHash.Hex()),
		zap.Uint64("block", receipt.BlockNumber),
		zap.Uint64("gas_used", receipt.GasUsed))

	return receipt, nil
}

// revertCause replays a reverted transaction as a call at its block so the node's revert
// data is kept next to ErrTransactionReverted
func (s *Submitter) revertCause(ctx context.Context, mined *types.Receipt, msg geth.CallMsg) error {
	_, err := s.conn.CallContract(ctx, msg, mined.BlockNumber)
	if err == nil {
		return ErrTransactionReverted
	}
	s.logger.Debug("Replayed reverted transaction", zap.String("tx_hash", mined.TxHash.Hex()), zap.Error(err))
	return fmt.Errorf("%w: %w", ErrTransactionReverted, err)
}

func (s *Submitter) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if s.receiptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.receiptTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.conn.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, geth.NotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Package explorer reads transaction history from a TomoScan-compatible indexer. Every failure
// is logged and degrades to fewer (or no) results: the explorer never decides whether a
// request succeeded.
package explorer

import (
	"context"
	"iter"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"bean_wallet_back/models"
)

const (
	listByAccountPath = "/api/txs/listByAccount/{address}"
	txPath            = "/api/txs/{hash}"

	defaultPageSize = 20
)

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	PageSize int
}

type Client struct {
	http     *resty.Client
	pageSize int
}

type txItem struct {
	Hash        string    `json:"hash"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Value       string    `json:"value"`
	BlockNumber uint64    `json:"blockNumber"`
	Timestamp   time.Time `json:"timestamp"`
	Status      bool      `json:"status"`
}

type txPage struct {
	Total int      `json:"total"`
	Pages int      `json:"pages"`
	Items []txItem `json:"items"`
}

func (t txItem) record() models.TransactionRecord {
	return models.TransactionRecord{
		Hash:        t.Hash,
		From:        t.From,
		To:          t.To,
		Value:       t.Value,
		BlockNumber: t.BlockNumber,
		Timestamp:   t.Timestamp,
		Status:      t.Status,
	}
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &Client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json"),
		pageSize: cfg.PageSize,
	}
}

// Transactions yields at most limit transactions of address, newest first as served by the
// explorer. Pages are requested while the caller keeps consuming. The sequence can be ranged
// over once; later iterations yield nothing.
func (c *Client) Transactions(ctx context.Context, address string, limit int) iter.Seq[models.TransactionRecord] {
	var used atomic.Bool

	return func(yield func(models.TransactionRecord) bool) {
		if used.Swap(true) || limit <= 0 {
			return
		}

		size := min(limit, c.pageSize)
		yielded := 0
		for page := 1; ; page++ {
			var result txPage
			resp, err := c.http.R().
				SetContext(ctx).
				SetPathParam("address", address).
				SetQueryParams(map[string]string{
					"page":  strconv.Itoa(page),
					"limit": strconv.Itoa(size),
				}).
				SetResult(&result).
				Get(listByAccountPath)
			if err != nil {
				logrus.WithError(err).WithField("address", address).Warn("explorer: list transactions failed")
				return
			}
			if resp.IsError() {
				logrus.WithFields(logrus.Fields{"address": address, "status": resp.StatusCode()}).
					Warn("explorer: list transactions rejected")
				return
			}

			for _, item := range result.Items {
				if !yield(item.record()) {
					return
				}
				yielded++
				if yielded >= limit {
					return
				}
			}
			if len(result.Items) < size || (result.Pages > 0 && page >= result.Pages) {
				return
			}
		}
	}
}

// TransactionDetail looks up one transaction. ok is false when the explorer has not indexed it
// yet or could not be reached.
func (c *Client) TransactionDetail(ctx context.Context, hash string) (record models.TransactionRecord, ok bool) {
	var item txItem
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("hash", hash).
		SetResult(&item).
		Get(txPath)
	if err != nil {
		logrus.WithError(err).WithField("hash", hash).Warn("explorer: transaction detail failed")
		return models.TransactionRecord{}, false
	}
	if resp.StatusCode() == http.StatusNotFound {
		return models.TransactionRecord{}, false
	}
	if resp.IsError() {
		logrus.WithFields(logrus.Fields{"hash": hash, "status": resp.StatusCode()}).
			Warn("explorer: transaction detail rejected")
		return models.TransactionRecord{}, false
	}
	if item.Hash == "" || item.Timestamp.IsZero() {
		return models.TransactionRecord{}, false
	}
	return item.record(), true
}

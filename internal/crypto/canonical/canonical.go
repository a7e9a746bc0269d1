// Package canonical produces the exact byte encoding used as signing input
// for transactions. The encoding is a pure function of the record: fixed
// field order, RFC 3339 UTC timestamps, integer minor-unit amounts, items
// sorted by id. Any change here invalidates every stored signature.
package canonical

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"

	"quantapay/internal/domain"
)

const (
	fieldDelimiter = '|'
	itemDelimiter  = ';'
	partDelimiter  = ':'
)

// Encode renders the canonical wire form:
//
//	tid|ts|merchant|customer|amount|currency|id:name:price:qty;...
//
// It fails with domain.ErrSerialization for records that cannot be encoded
// deterministically: missing id, zero timestamp, negative amounts, or field
// values containing a delimiter byte.
func Encode(tx domain.Transaction) ([]byte, error) {
	if tx.TransactionID == "" {
		return nil, fmt.Errorf("%w: transaction_id is required", domain.ErrSerialization)
	}
	if tx.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: timestamp is required", domain.ErrSerialization)
	}
	if tx.AmountMinorUnits < 0 {
		return nil, fmt.Errorf("%w: negative amount", domain.ErrSerialization)
	}
	if len(tx.Currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be an ISO-4217 code", domain.ErrSerialization)
	}
	for _, field := range []string{tx.TransactionID, tx.MerchantID, tx.CustomerID, tx.Currency} {
		if err := checkField(field); err != nil {
			return nil, err
		}
	}

	items := make([]domain.LineItem, len(tx.Items))
	copy(items, tx.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	buf := &bytes.Buffer{}
	buf.WriteString(tx.TransactionID)
	buf.WriteByte(fieldDelimiter)
	buf.WriteString(tx.Timestamp.UTC().Format(time.RFC3339))
	buf.WriteByte(fieldDelimiter)
	buf.WriteString(tx.MerchantID)
	buf.WriteByte(fieldDelimiter)
	buf.WriteString(tx.CustomerID)
	buf.WriteByte(fieldDelimiter)
	buf.WriteString(strconv.FormatInt(tx.AmountMinorUnits, 10))
	buf.WriteByte(fieldDelimiter)
	buf.WriteString(tx.Currency)
	buf.WriteByte(fieldDelimiter)

	for i, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("%w: item id is required", domain.ErrSerialization)
		}
		if item.PriceMinorUnits < 0 || item.Quantity < 0 {
			return nil, fmt.Errorf("%w: negative item value", domain.ErrSerialization)
		}
		for _, field := range []string{item.ID, item.Name} {
			if err := checkField(field); err != nil {
				return nil, err
			}
		}
		if i > 0 {
			buf.WriteByte(itemDelimiter)
		}
		buf.WriteString(item.ID)
		buf.WriteByte(partDelimiter)
		buf.WriteString(item.Name)
		buf.WriteByte(partDelimiter)
		buf.WriteString(strconv.FormatInt(item.PriceMinorUnits, 10))
		buf.WriteByte(partDelimiter)
		buf.WriteString(strconv.FormatInt(item.Quantity, 10))
	}

	return buf.Bytes(), nil
}

func checkField(field string) error {
	if !utf8.ValidString(field) {
		return fmt.Errorf("%w: field is not valid UTF-8", domain.ErrSerialization)
	}
	for i := 0; i < len(field); i++ {
		switch field[i] {
		case fieldDelimiter, itemDelimiter, partDelimiter:
			return fmt.Errorf("%w: field contains delimiter byte %q", domain.ErrSerialization, field[i])
		}
	}
	return nil
}

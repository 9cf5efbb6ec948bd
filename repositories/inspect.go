package repositories

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// InspectRow is a human readable view of one stored key.
type InspectRow struct {
	Key    string
	Type   string
	At     string
	Owner  string
	Detail string
}

// Inspect walks every key under prefix and hands a decoded row to fn.
// Undecodable values are reported in the row instead of stopping the scan.
func Inspect(db *badger.DB, prefix string, fn func(InspectRow)) error {
	return db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(v []byte) error {
				fn(DecodeRow(key, v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func DecodeRow(key string, value []byte) InspectRow {
	row := InspectRow{Key: key}
	switch {
	case strings.HasPrefix(key, userPrefix):
		var r userRecord
		if err := json.Unmarshal(value, &r); err != nil {
			return undecodable(row, "USER", err)
		}
		row.Type = "USER"
		row.At = r.CreatedAt.Format(time.DateTime)
		row.Owner = r.Email
		row.Detail = r.FullName
	case strings.HasPrefix(key, emailPrefix):
		row.Type = "EMAIL"
		row.Owner = strings.TrimPrefix(key, emailPrefix)
		row.Detail = "-> " + string(value)
	case strings.HasPrefix(key, "msg:"):
		var dm diskMessage
		if err := json.Unmarshal(value, &dm); err != nil {
			return undecodable(row, "MESSAGE", err)
		}
		row.Type = "MESSAGE"
		row.At = time.Unix(0, dm.At).UTC().Format(time.DateTime)
		row.Owner = shortID(dm.SenderID) + " -> " + shortID(dm.RecipientID)
		row.Detail = dm.Text
		if dm.Image != "" {
			row.Detail = strings.TrimSpace(row.Detail + " [image]")
		}
	default:
		row.Type = "UNKNOWN"
		row.Detail = fmt.Sprintf("%d bytes", len(value))
	}
	return row
}

func undecodable(row InspectRow, kind string, err error) InspectRow {
	row.Type = kind
	row.Detail = "undecodable: " + err.Error()
	return row
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Command store_inspect dumps the client's local BadgerDB store: the
// persisted session record, the last-known room code and the device id.
// Useful when debugging "why am I still logged in" reports.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"

	"chatsync/domain"
)

func main() {
	dbPath := flag.String("db", ".chatsync", "Path to the local badger store")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Value"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("client:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(v []byte) error {
				table.Append([]string{key, renderValue(key, v)})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Error while scanning store: ", err)
	}

	table.Render()
}

// renderValue pretty-prints the session record and passes everything else
// through as-is. The token is truncated: this tool ends up in pasted logs.
func renderValue(key string, value []byte) string {
	if key != "client:session" {
		return string(value)
	}
	var session domain.Session
	if err := json.Unmarshal(value, &session); err != nil {
		return "<malformed: " + err.Error() + ">"
	}
	token := session.Token
	if len(token) > 12 {
		token = token[:12] + "..."
	}
	return "user=" + session.User.Username + " token=" + token
}

/*
Package memdb is an in-process implementation of user.Store and message.Store.

Transactions are serialized and buffer their writes until commit, so a failed
transaction leaves nothing behind and readers never observe a half-applied send.
It backs STORE_DRIVER=memory and the store-level test suites.
*/
package memdb

import (
	"sync"
	"time"

	"duochat/internal/app/message"
	"duochat/internal/app/user"
)

// DB holds all entities in maps guarded by one mutex.
type DB struct {
	// txMu serializes InTx callers, standing in for row locks.
	txMu sync.Mutex

	mu            sync.RWMutex
	users         map[string]user.Account
	emails        map[string]string
	usernames     map[string]string
	conversations map[string]message.Conversation
	pairs         map[[2]string]string
	messages      map[string]message.Message
	seq           int64

	now func() time.Time
}

var (
	_ user.Store    = (*DB)(nil)
	_ message.Store = (*DB)(nil)
)

// New returns an empty DB.
func New() *DB {
	return &DB{
		users:         make(map[string]user.Account),
		emails:        make(map[string]string),
		usernames:     make(map[string]string),
		conversations: make(map[string]message.Conversation),
		pairs:         make(map[[2]string]string),
		messages:      make(map[string]message.Message),
		now:           time.Now,
	}
}

// nextSeq must be called with mu held for writing.
func (db *DB) nextSeq() int64 {
	db.seq++
	return db.seq
}

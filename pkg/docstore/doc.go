// Package docstore provides a small document-oriented storage abstraction
// with merge writes, equality queries, and atomic read-then-write
// transactions.
//
// Two implementations are provided: Memory, a mutex-serialized in-process
// store used in tests and development, and Mongo, backed by the official
// MongoDB driver. Both guarantee that a transaction observes and applies its
// reads and writes atomically, which is what the reservation and
// registration flows rely on to serialize concurrent claims on the same key.
//
// Example:
//
//	store := docstore.NewMemory()
//	err := store.RunTransaction(ctx, func(tx docstore.Tx) error {
//		doc, err := tx.Get("usernames", "alice")
//		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
//			return err
//		}
//		if doc != nil {
//			return errors.New("taken")
//		}
//		tx.Set("usernames", "alice", docstore.Document{"userId": uid}, false)
//		return nil
//	})
package docstore

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"qms-rag/internal/models"
)

// Key layout:
//
//	doc:meta:{indexedDocID}                 -> IndexedDocument
//	doc:byupload:{uploadDocumentID}         -> indexedDocID
//	doc:{indexedDocID}:chunk:{seq}          -> DocumentChunk (seq zero-padded)
//	chunkref:{chunkID}                      -> chunk key
//	session:meta:{sessionID}                -> ChatSession
//	session:{sessionID}:msg:{nanos}:{msgID} -> ChatMessage
//
// Zero-padded sequence numbers keep chunk iteration in insertion order;
// nanosecond timestamps keep message iteration chronological.
type BadgerStore struct {
	db *badger.DB
}

var (
	_ IndexedDocumentStore = (*BadgerStore)(nil)
	_ ChunkStore           = (*BadgerStore)(nil)
	_ SessionStore         = (*BadgerStore)(nil)
	_ MessageStore         = (*BadgerStore)(nil)
)

func NewBadgerStore(dbPath string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func docMetaKey(id string) []byte         { return []byte("doc:meta:" + id) }
func docByUploadKey(uploadID int) []byte  { return []byte(fmt.Sprintf("doc:byupload:%d", uploadID)) }
func chunkPrefix(docID string) []byte     { return []byte(fmt.Sprintf("doc:%s:chunk:", docID)) }
func chunkKey(docID string, seq int) []byte {
	return []byte(fmt.Sprintf("doc:%s:chunk:%06d", docID, seq))
}
func chunkRefKey(chunkID string) []byte  { return []byte("chunkref:" + chunkID) }
func pointRefKey(pointID string) []byte  { return []byte("pointref:" + pointID) }
func sessionMetaKey(id string) []byte    { return []byte("session:meta:" + id) }
func messagePrefix(sessionID string) []byte {
	return []byte(fmt.Sprintf("session:%s:msg:", sessionID))
}
func messageKey(msg *models.ChatMessage) []byte {
	return []byte(fmt.Sprintf("session:%s:msg:%020d:%s", msg.SessionID, msg.CreatedAt.UnixNano(), msg.ID))
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return txn.Set(key, data)
}

func (s *BadgerStore) getJSON(key []byte, v interface{}) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}

// deletePrefix removes every key under prefix inside an open transaction.
func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
			return err
		}
	}
	return nil
}

// --- indexed documents ---

func (s *BadgerStore) PutIndexedDocument(ctx context.Context, doc *models.IndexedDocument) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, docMetaKey(doc.ID), doc); err != nil {
			return fmt.Errorf("failed to store indexed document: %w", err)
		}
		return txn.Set(docByUploadKey(doc.UploadDocumentID), []byte(doc.ID))
	})
}

func (s *BadgerStore) GetIndexedDocument(ctx context.Context, id string) (*models.IndexedDocument, error) {
	var doc models.IndexedDocument
	if err := s.getJSON(docMetaKey(id), &doc); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to retrieve indexed document: %w", err)
	}
	return &doc, nil
}

func (s *BadgerStore) GetIndexedDocumentByUpload(ctx context.Context, uploadDocumentID int) (*models.IndexedDocument, error) {
	var docID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docByUploadKey(uploadDocumentID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			docID = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload document %d: %w", uploadDocumentID, err)
	}
	return s.GetIndexedDocument(ctx, docID)
}

func (s *BadgerStore) ListIndexedDocuments(ctx context.Context) ([]models.IndexedDocument, error) {
	var docs []models.IndexedDocument
	prefix := []byte("doc:meta:")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var doc models.IndexedDocument
				if err := json.Unmarshal(val, &doc); err != nil {
					return err
				}
				docs = append(docs, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list indexed documents: %w", err)
	}

	// Newest first.
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].IndexedAt.After(docs[j].IndexedAt)
	})
	return docs, nil
}

func (s *BadgerStore) DeleteIndexedDocument(ctx context.Context, id string) error {
	doc, err := s.GetIndexedDocument(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(docMetaKey(id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to delete indexed document: %w", err)
		}
		if err := txn.Delete(docByUploadKey(doc.UploadDocumentID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to delete upload index: %w", err)
		}
		return s.deleteChunksTxn(txn, id)
	})
}

// --- chunks ---

func (s *BadgerStore) deleteChunksTxn(txn *badger.Txn, indexedDocumentID string) error {
	prefix := chunkPrefix(indexedDocumentID)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var chunk models.DocumentChunk
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &chunk)
		})
		if err != nil {
			return err
		}
		if err := txn.Delete(chunkRefKey(chunk.ChunkID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to delete chunk reference: %w", err)
		}
		if err := txn.Delete(pointRefKey(chunk.PointID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to delete point reference: %w", err)
		}
		if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
			return fmt.Errorf("failed to delete chunk: %w", err)
		}
	}
	return nil
}

func (s *BadgerStore) ReplaceChunks(ctx context.Context, indexedDocumentID string, chunks []models.DocumentChunk) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := s.deleteChunksTxn(txn, indexedDocumentID); err != nil {
			return err
		}
		for i, chunk := range chunks {
			key := chunkKey(indexedDocumentID, i)
			if err := setJSON(txn, key, &chunk); err != nil {
				return fmt.Errorf("failed to store chunk %s: %w", chunk.ChunkID, err)
			}
			if err := txn.Set(chunkRefKey(chunk.ChunkID), key); err != nil {
				return fmt.Errorf("failed to store chunk reference: %w", err)
			}
			if chunk.PointID != "" {
				if err := txn.Set(pointRefKey(chunk.PointID), key); err != nil {
					return fmt.Errorf("failed to store point reference: %w", err)
				}
			}
		}
		return nil
	})
}

func (s *BadgerStore) GetChunks(ctx context.Context, indexedDocumentID string) ([]models.DocumentChunk, error) {
	var chunks []models.DocumentChunk
	prefix := chunkPrefix(indexedDocumentID)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var chunk models.DocumentChunk
				if err := json.Unmarshal(val, &chunk); err != nil {
					return err
				}
				chunks = append(chunks, chunk)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve chunks: %w", err)
	}
	return chunks, nil
}

func (s *BadgerStore) GetChunkByChunkID(ctx context.Context, chunkID string) (*models.DocumentChunk, error) {
	return s.getChunkByRef(chunkRefKey(chunkID), chunkID)
}

func (s *BadgerStore) GetChunkByPointID(ctx context.Context, pointID string) (*models.DocumentChunk, error) {
	return s.getChunkByRef(pointRefKey(pointID), pointID)
}

func (s *BadgerStore) getChunkByRef(refKey []byte, id string) (*models.DocumentChunk, error) {
	var chunk models.DocumentChunk
	err := s.db.View(func(txn *badger.Txn) error {
		ref, err := txn.Get(refKey)
		if err != nil {
			return err
		}
		var key []byte
		if err := ref.Value(func(val []byte) error {
			key = append([]byte(nil), val...)
			return nil
		}); err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &chunk)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve chunk %s: %w", id, err)
	}
	return &chunk, nil
}

func (s *BadgerStore) DeleteChunks(ctx context.Context, indexedDocumentID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.deleteChunksTxn(txn, indexedDocumentID)
	})
}

// --- sessions ---

func (s *BadgerStore) PutSession(ctx context.Context, session *models.ChatSession) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, sessionMetaKey(session.ID), session); err != nil {
			return fmt.Errorf("failed to store session: %w", err)
		}
		return nil
	})
}

func (s *BadgerStore) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := s.getJSON(sessionMetaKey(sessionID), &session); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to retrieve session: %w", err)
	}
	return &session, nil
}

func (s *BadgerStore) ListSessions(ctx context.Context, userID string) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	prefix := []byte("session:meta:")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var session models.ChatSession
				if err := json.Unmarshal(val, &session); err != nil {
					return err
				}
				if userID == "" || session.UserID == userID {
					sessions = append(sessions, session)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	// Most recently active first.
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastMessageAt.After(sessions[j].LastMessageAt)
	})
	return sessions, nil
}

func (s *BadgerStore) DeleteSession(ctx context.Context, sessionID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(sessionMetaKey(sessionID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return deletePrefix(txn, messagePrefix(sessionID))
	})
}

// --- messages ---

func (s *BadgerStore) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, messageKey(msg), msg); err != nil {
			return fmt.Errorf("failed to store message: %w", err)
		}
		return nil
	})
}

func (s *BadgerStore) GetMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	prefix := messagePrefix(sessionID)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var msg models.ChatMessage
				if err := json.Unmarshal(val, &msg); err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve messages: %w", err)
	}
	return messages, nil
}

package session

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"mentorly/internal/models"
)

var bucketSessions = []byte("sessions")

// DBSession is the persisted shape of a logged-in session. One entry per
// account; the active session lives under the fixed key "current".
type DBSession struct {
	Token     string `msgpack:"token"`
	UserID    string `msgpack:"userId"`
	Name      string `msgpack:"name"`
	AvatarURL string `msgpack:"avatarUrl"`
	IsMentor  bool   `msgpack:"isMentor"`
	SavedAt   int64  `msgpack:"savedAt"`
}

func (s *DBSession) Key() []byte {
	return []byte("current")
}

func (s *DBSession) MarshalBinary() (data []byte, err error) {
	type alias DBSession
	return msgpack.Marshal((*alias)(s))
}

func (s *DBSession) UnmarshalBinary(data []byte) error {
	type alias DBSession
	return msgpack.Unmarshal(data, (*alias)(s))
}

// Store persists the session across restarts in a local bbolt file.
type Store struct {
	db *bbolt.DB
}

func NewStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open session db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create session bucket: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists the session, replacing any previous one.
func (s *Store) Save(sess DBSession) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		data, err := sess.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(sess.Key(), data)
	})
}

// Load reads the persisted session. A missing session reports
// models.ErrNotLoggedIn.
func (s *Store) Load() (DBSession, error) {
	var sess DBSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		data := b.Get(sess.Key())
		if data == nil {
			return models.ErrNotLoggedIn
		}
		return sess.UnmarshalBinary(data)
	})
	return sess, err
}

// Delete removes the persisted session.
func (s *Store) Delete() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		var sess DBSession
		return b.Delete(sess.Key())
	})
}

package redis

import (
	"context"
	"encoding/json"

	"github.com/turtacn/leadscope/internal/domain/account"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

// RegistrationStore keeps the account registration log in a Redis list, one
// JSON document per entry in registration order.
type RegistrationStore struct {
	client *Client
	key    string
	logger logging.Logger
}

// NewRegistrationStore returns a store writing to <prefix>account:registrations.
func NewRegistrationStore(client *Client, log logging.Logger) *RegistrationStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &RegistrationStore{
		client: client,
		key:    client.Key("account", "registrations"),
		logger: log.Named("registration_store"),
	}
}

// Key returns the list key.
func (s *RegistrationStore) Key() string { return s.key }

// Load returns every persisted registration.  Undecodable entries are logged
// and skipped so one bad write cannot block the registry.
func (s *RegistrationStore) Load(ctx context.Context) ([]account.Registration, error) {
	rdb, err := s.client.Underlying()
	if err != nil {
		return nil, err
	}
	raw, err := rdb.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to load account registrations")
	}
	regs := make([]account.Registration, 0, len(raw))
	for i, doc := range raw {
		var reg account.Registration
		if err := json.Unmarshal([]byte(doc), &reg); err != nil {
			s.logger.Warn("skipping undecodable registration", logging.Int("index", i), logging.Err(err))
			continue
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

// Append pushes regs to the tail of the list in one round trip.
func (s *RegistrationStore) Append(ctx context.Context, regs ...account.Registration) error {
	if len(regs) == 0 {
		return nil
	}
	rdb, err := s.client.Underlying()
	if err != nil {
		return err
	}
	values := make([]interface{}, 0, len(regs))
	for _, reg := range regs {
		doc, err := json.Marshal(reg)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode registration")
		}
		values = append(values, string(doc))
	}
	if err := rdb.RPush(ctx, s.key, values...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to append account registrations")
	}
	s.logger.Debug("registrations appended", logging.Int("count", len(regs)))
	return nil
}

var _ account.RegistrationStore = (*RegistrationStore)(nil)

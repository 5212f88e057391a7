package validator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	KeyPrefix        = "tagsync"
	KeyVersion1      = "v1"
	KeyVersion2      = "v2"
	KeyActiveVersion = "av" // STRING. Version of the hash readers should use.
	KeyValidators    = "vm" // HASH. validators:ver url: token

	KeyEmpty     = ""
	KeySeparator = ":"
)

// validatorRepository keeps the validator map in redis. Saves go to the
// standby version and then flip the active key, so a reader never sees a
// half written map.
type validatorRepository struct {
	cl  *redis.Client
	log *slog.Logger
}

func NewValidatorRepository(cl *redis.Client, log *slog.Logger) *validatorRepository {
	return &validatorRepository{
		cl:  cl,
		log: log.With(slog.String("item", "ValidatorRepository")),
	}
}

func (r *validatorRepository) Load(ctx context.Context) (map[string]string, error) {
	ver, err := r.cl.Get(ctx, getKey(KeyPrefix, KeyActiveVersion)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.log.Info("Active version key is not found, starting empty")

			return make(map[string]string), nil
		}

		return nil, fmt.Errorf("cannot get active version: %w", err)
	}

	validators, err := r.cl.HGetAll(ctx, getKey(KeyPrefix, KeyValidators, ver)).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get validators: %w", err)
	}

	return validators, nil
}

func (r *validatorRepository) Save(ctx context.Context, validators map[string]string) error {
	verActive, verStandby, err := r.getVersions(ctx)
	if err != nil {
		return fmt.Errorf("cannot get versions: %w", err)
	}

	log := r.log.With(slog.String("active_version", verActive), slog.String("standby_version", verStandby))
	log.Info("Save validators", slog.Int("count", len(validators)))

	key := getKey(KeyPrefix, KeyValidators, verStandby)

	pipe := r.cl.TxPipeline()
	pipe.Del(ctx, key)
	if len(validators) > 0 {
		values := make([]any, 0, len(validators)*2)
		for url, token := range validators {
			values = append(values, url, token)
		}
		pipe.HSet(ctx, key, values...)
	}
	pipe.Set(ctx, getKey(KeyPrefix, KeyActiveVersion), verStandby, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Error("Cannot save validators", slog.Any("error", err))

		return fmt.Errorf("cannot save validators: %w", err)
	}

	if _, err := r.cl.Del(ctx, getKey(KeyPrefix, KeyValidators, verActive)).Result(); err != nil {
		log.Error("Cannot clear old validators", slog.Any("error", err))
	}

	return nil
}

/*
getVersions return active and standby versions
*/
func (r *validatorRepository) getVersions(ctx context.Context) (string, string, error) {
	ver, err := r.cl.Get(ctx, getKey(KeyPrefix, KeyActiveVersion)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return KeyEmpty, KeyEmpty, fmt.Errorf("cannot get active version: %w", err)
	}

	if ver == KeyVersion2 {
		return KeyVersion2, KeyVersion1, nil
	}

	return KeyVersion1, KeyVersion2, nil
}

func getKey(keys ...string) string {
	return strings.Join(keys, KeySeparator)
}

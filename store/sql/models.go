package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type preferenceRecord struct {
	bun.BaseModel `bun:"table:authbridge_preferences,alias:ap"`

	ID        string    `bun:"id,pk"`
	Namespace string    `bun:"namespace,notnull"`
	Key       string    `bun:"pref_key,notnull"`
	Value     string    `bun:"pref_value,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

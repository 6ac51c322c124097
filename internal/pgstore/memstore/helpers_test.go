package memstore_test

import (
	"time"

	"github.com/google/uuid"
)

func mustUUID() uuid.UUID { return uuid.New() }

func nowUTC() time.Time { return time.Now().UTC() }

package common

import (
	"time"

	"khoomi-api-io/catalog/internal/validators"
)

var Validate = validators.New()

const (
	REQUEST_TIMEOUT_SECS = 30 * time.Second
	MAX_IMAGE_SIZE       = 10 << 20
	MIN_SEARCH_LENGTH    = 2
)

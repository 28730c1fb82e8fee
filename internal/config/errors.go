package config

import "errors"

var ErrMissingAPIURL = errors.New("saleor.apiUrl must be set")

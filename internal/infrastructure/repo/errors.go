package repo

import "errors"

var (
	errNotFound     = errors.New("repo: not found")
	errCodeTaken    = errors.New("repo: gateway order code already assigned to another order")
	errProductTaken = errors.New("repo: product already has a recipe")
)

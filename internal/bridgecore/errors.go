package bridgecore

import "errors"

var (
	ErrBuild               = errors.New("build failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSubmit              = errors.New("submission failed")
	ErrNoJobs              = errors.New("no wallets to process")
)

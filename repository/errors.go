package repository

import "errors"

// ErrInvalidTrainID is returned by both stores for a train id that is not positive
var ErrInvalidTrainID = errors.New("train_id must be positive")

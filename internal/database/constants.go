package database

import "github.com/kozaktomas/face-sorter/internal/event"

var log = event.Log

// DefaultRunListLimit is the number of runs returned when no limit is given.
const DefaultRunListLimit = 20

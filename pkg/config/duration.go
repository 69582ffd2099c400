package config

import "time"

// Duration is a whole number of seconds as written in config files.
type Duration int64

func (d Duration) Duration() time.Duration {
	return time.Duration(d) * time.Second
}

func (d Duration) Seconds() int64 {
	return int64(d)
}

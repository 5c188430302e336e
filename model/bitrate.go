package model

import (
	"sort"
	"strconv"
)

// Bitrate is a video rendition bitrate in Mbps.
type Bitrate float64

// String formats the bitrate with two decimals, e.g. "0.75".
func (b Bitrate) String() string {
	return strconv.FormatFloat(float64(b), 'f', 2, 64)
}

// Mbps returns the bitrate as a plain float.
func (b Bitrate) Mbps() float64 { return float64(b) }

// SortBitrates orders bitrates ascending in place and returns the slice.
func SortBitrates(bs []Bitrate) []Bitrate {
	sort.Slice(bs, func(i, j int) bool { return bs[i] < bs[j] })
	return bs
}

// MarshalText lets bitrates key JSON objects.
func (b Bitrate) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText parses a bitrate written by MarshalText.
func (b *Bitrate) UnmarshalText(text []byte) error {
	v, err := strconv.ParseFloat(string(text), 64)
	if err != nil {
		return err
	}
	*b = Bitrate(v)
	return nil
}

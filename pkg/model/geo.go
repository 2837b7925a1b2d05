package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidGeo is returned when a location value cannot be parsed.
var ErrInvalidGeo = errors.New("invalid geo value")

// GeoPoint is a WGS84 coordinate, encoded as "lat, lon".
type GeoPoint struct {
	Lat float64
	Lon float64
}

// String returns the wire form "lat, lon".
func (p GeoPoint) String() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + ", " + strconv.FormatFloat(p.Lon, 'f', -1, 64)
}

// ParseGeoPoint parses "lat, lon".
func ParseGeoPoint(s string) (GeoPoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return GeoPoint{}, fmt.Errorf("%w: %q", ErrInvalidGeo, s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("%w: latitude %q", ErrInvalidGeo, parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("%w: longitude %q", ErrInvalidGeo, parts[1])
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return GeoPoint{}, fmt.Errorf("%w: %q out of range", ErrInvalidGeo, s)
	}
	return GeoPoint{Lat: lat, Lon: lon}, nil
}

// MarshalJSON implements json.Marshaler.
func (p GeoPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *GeoPoint) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGeo, err)
	}
	parsed, err := ParseGeoPoint(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// GeoLine is an ordered list of at least two points.
type GeoLine []GeoPoint

// UnmarshalJSON implements json.Unmarshaler.
func (l *GeoLine) UnmarshalJSON(data []byte) error {
	points, err := unmarshalPoints(data, 2)
	if err != nil {
		return err
	}
	*l = points
	return nil
}

// GeoPolygon is a closed ring: at least four points, first equal to last.
type GeoPolygon []GeoPoint

// UnmarshalJSON implements json.Unmarshaler.
func (p *GeoPolygon) UnmarshalJSON(data []byte) error {
	points, err := unmarshalPoints(data, 4)
	if err != nil {
		return err
	}
	if points[0] != points[len(points)-1] {
		return fmt.Errorf("%w: polygon is not closed", ErrInvalidGeo)
	}
	*p = points
	return nil
}

// GeoBox is a bounding box given by its lower-left and upper-right corners.
type GeoBox struct {
	LowerLeft  GeoPoint
	UpperRight GeoPoint
}

// MarshalJSON implements json.Marshaler.
func (b GeoBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([]GeoPoint{b.LowerLeft, b.UpperRight})
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *GeoBox) UnmarshalJSON(data []byte) error {
	points, err := unmarshalPoints(data, 2)
	if err != nil {
		return err
	}
	if len(points) != 2 {
		return fmt.Errorf("%w: box needs exactly two corners", ErrInvalidGeo)
	}
	b.LowerLeft, b.UpperRight = points[0], points[1]
	return nil
}

func unmarshalPoints(data []byte, min int) ([]GeoPoint, error) {
	var points []GeoPoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, err
	}
	if len(points) < min {
		return nil, fmt.Errorf("%w: need at least %d points, got %d", ErrInvalidGeo, min, len(points))
	}
	return points, nil
}

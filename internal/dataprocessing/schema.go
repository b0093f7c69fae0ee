package dataprocessing

import (
	"fmt"
	"strings"

	"robokin/pkg/contracts/domain"
)

// Reference configuration: two robots, three linear axes, three force fields
var (
	DefaultRobots      = []string{"1", "2"}
	DefaultAxes        = []domain.Field{domain.FieldX, domain.FieldY, domain.FieldZ}
	DefaultForceFields = []domain.Field{domain.FieldFX, domain.FieldFY, domain.FieldFZ}
)

// FeatureSchema is the enumerated column layout of the wide and derived
// tables, built once from the configured robots, axes and force fields.
//
// Layout of a feature row:
//
//	wide:       per robot, axes then force fields       {field}_{robot}
//	per axis:   per robot, per axis, d v a              d{axis}_{robot} ...
//	magnitudes: per robot, d v a f                      d{robot} ...
type FeatureSchema struct {
	robots []string
	axes   []domain.Field
	forces []domain.Field

	wide  []domain.Column
	index map[domain.Column]int
	names []string
}

// NewFeatureSchema builds the schema. Robot and field names must be non-empty
// and unique, and every generated column name must be unique.
func NewFeatureSchema(robots []string, axes, forces []domain.Field) (*FeatureSchema, error) {
	if len(robots) == 0 {
		return nil, fmt.Errorf("%w: no robots configured", ErrInvalidSchema)
	}
	if len(axes) == 0 {
		return nil, fmt.Errorf("%w: no axes configured", ErrInvalidSchema)
	}

	s := &FeatureSchema{
		robots: append([]string(nil), robots...),
		axes:   append([]domain.Field(nil), axes...),
		forces: append([]domain.Field(nil), forces...),
		index:  make(map[domain.Column]int),
	}

	for _, robot := range s.robots {
		if strings.TrimSpace(robot) == "" {
			return nil, fmt.Errorf("%w: empty robot id", ErrInvalidSchema)
		}
		for _, field := range append(append([]domain.Field(nil), s.axes...), s.forces...) {
			if strings.TrimSpace(string(field)) == "" {
				return nil, fmt.Errorf("%w: empty field name", ErrInvalidSchema)
			}
			col := domain.Column{Field: field, Robot: robot}
			if _, dup := s.index[col]; dup {
				return nil, fmt.Errorf("%w: duplicate column %s", ErrInvalidSchema, col.Name())
			}
			s.index[col] = len(s.wide)
			s.wide = append(s.wide, col)
		}
	}

	for _, col := range s.wide {
		s.names = append(s.names, col.Name())
	}
	for _, robot := range s.robots {
		for _, axis := range s.axes {
			s.names = append(s.names,
				"d"+string(axis)+"_"+robot,
				"v"+string(axis)+"_"+robot,
				"a"+string(axis)+"_"+robot)
		}
	}
	for _, robot := range s.robots {
		s.names = append(s.names, "d"+robot, "v"+robot, "a"+robot, "f"+robot)
	}

	seen := make(map[string]struct{}, len(s.names))
	for _, name := range s.names {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: column name %q generated twice", ErrInvalidSchema, name)
		}
		seen[name] = struct{}{}
	}

	return s, nil
}

// DefaultFeatureSchema returns the two robot, three axis reference schema
func DefaultFeatureSchema() *FeatureSchema {
	s, err := NewFeatureSchema(DefaultRobots, DefaultAxes, DefaultForceFields)
	if err != nil {
		panic(fmt.Sprintf("default feature schema: %v", err))
	}
	return s
}

func (s *FeatureSchema) Robots() []string { return append([]string(nil), s.robots...) }

func (s *FeatureSchema) Axes() []domain.Field { return append([]domain.Field(nil), s.axes...) }

func (s *FeatureSchema) Forces() []domain.Field { return append([]domain.Field(nil), s.forces...) }

func (s *FeatureSchema) WideColumns() []domain.Column {
	return append([]domain.Column(nil), s.wide...)
}

// WideWidth is the number of pivoted (field, robot) columns
func (s *FeatureSchema) WideWidth() int { return len(s.wide) }

// Width is the number of feature columns: wide plus derived
func (s *FeatureSchema) Width() int { return len(s.names) }

// Names returns every feature column name in row order
func (s *FeatureSchema) Names() []string { return append([]string(nil), s.names...) }

// ColumnIndex returns the wide index of a (field, robot) pair
func (s *FeatureSchema) ColumnIndex(col domain.Column) (int, bool) {
	i, ok := s.index[col]
	return i, ok
}

// RobotIndex returns the position of robot in the configured robot list
func (s *FeatureSchema) RobotIndex(robot string) (int, bool) {
	for i, r := range s.robots {
		if r == robot {
			return i, true
		}
	}
	return 0, false
}

func (s *FeatureSchema) fieldsPerRobot() int { return len(s.axes) + len(s.forces) }

func (s *FeatureSchema) positionIndex(ri, ai int) int { return ri*s.fieldsPerRobot() + ai }

func (s *FeatureSchema) forceIndex(ri, fi int) int {
	return ri*s.fieldsPerRobot() + len(s.axes) + fi
}

// axisBase is the index of d{axis}_{robot}; velocity and acceleration follow
func (s *FeatureSchema) axisBase(ri, ai int) int {
	return len(s.wide) + (ri*len(s.axes)+ai)*3
}

// magnitudeBase is the index of d{robot}; v, a and f follow
func (s *FeatureSchema) magnitudeBase(ri int) int {
	return len(s.wide) + len(s.robots)*len(s.axes)*3 + ri*4
}

// DistanceIndex returns the index of the distance magnitude column of robot
func (s *FeatureSchema) DistanceIndex(ri int) int { return s.magnitudeBase(ri) }

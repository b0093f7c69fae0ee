package dataprocessing

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"robokin/pkg/contracts/domain"
)

// DecodeSamples turns a validated table into typed samples. Rows whose run id
// is not integral or whose value does not parse to a finite float are dropped
// and counted, whatever the rule table configured for those columns.
// The table must carry every required column.
func DecodeSamples(table *domain.Table) ([]domain.RawSample, domain.DropReport, error) {
	if table == nil {
		return nil, domain.DropReport{}, nil
	}
	if err := table.RequireColumns(domain.RequiredColumns...); err != nil {
		return nil, nil, fmt.Errorf("decode samples: %w", err)
	}

	var (
		runIdx    = table.Index(domain.ColumnRunUUID)
		robotIdx  = table.Index(domain.ColumnRobotID)
		sensorIdx = table.Index(domain.ColumnSensorType)
		fieldIdx  = table.Index(domain.ColumnField)
		timeIdx   = table.Index(domain.ColumnTime)
		valueIdx  = table.Index(domain.ColumnValue)
	)

	samples := make([]domain.RawSample, 0, len(table.Rows))
	drops := domain.DropReport{}

	for _, row := range table.Rows {
		cell := func(i int) string {
			if i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}

		run, err := domain.ParseRunID(cell(runIdx))
		if err != nil {
			drops.Add(DropRuleRunNonIntegral)
			continue
		}
		value, err := strconv.ParseFloat(cell(valueIdx), 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			drops.Add(DropRuleValueDecode)
			continue
		}

		samples = append(samples, domain.RawSample{
			Run:    run,
			Robot:  cell(robotIdx),
			Sensor: domain.SensorType(cell(sensorIdx)),
			Field:  domain.Field(cell(fieldIdx)),
			Time:   cell(timeIdx),
			Value:  value,
		})
	}

	return samples, drops, nil
}

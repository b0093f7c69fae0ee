// Package shared holds helpers used by several robokin packages that do not
// belong to any one layer. Its testutil subpackage provides log capture and
// telemetry fixtures for tests.
package shared

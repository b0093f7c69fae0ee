// Package config loads the robokin configuration.
//
// # Configuration Sources
//
// Configuration is resolved in the following order, later sources winning:
//
//  1. Default values
//  2. The YAML file (config.yaml or configs/config.yaml when no path is given)
//  3. Environment variables
//
// # Environment Variables
//
// Every field except the validation rule table can be overridden with a
// ROBOKIN_* variable named after its section and field:
//
//	ROBOKIN_SERVER_PORT=9090
//	ROBOKIN_LOGGING_LEVEL=debug
//	ROBOKIN_PIPELINE_ROBOTS=1,2,3
//	ROBOKIN_PIPELINE_DUPLICATE_POLICY=mean
//	ROBOKIN_STORAGE_SINK=sqlite
//
// # Rule Table
//
// The validation section maps column names to a dtype and optional accepted
// values:
//
//	validation:
//	  rules:
//	    sensor_type:
//	      dtype: string
//	      accepted_values: [encoder, load_cell]
//
// A rule table in the file replaces the built-in table.
//
// # Validation
//
// Load rejects a configuration whose struct tags fail validation, whose rule
// table cannot build a schema, or whose robots and fields produce colliding
// feature columns.
package config

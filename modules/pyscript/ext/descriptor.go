package pyscript

import "github.com/opendmp/python-script-processor/sdk/api/spi"

// ServiceName is the name the processor registers under with service discovery.
const ServiceName = "python-script-processor"

// Descriptor returns the Python Script Processor plugin descriptor. Each call
// builds a fresh value, so callers never share mutable state.
func Descriptor() spi.PluginConfiguration {
	return spi.PluginConfiguration{
		ServiceName: ServiceName,
		DisplayName: "Python Script Processor",
		Type:        spi.CategoryScript,
		Fields: map[string]spi.FieldDescription{
			"code": {
				Type:       spi.FieldCode,
				Required:   true,
				HelperText: "The script to execute",
			},
		},
	}
}

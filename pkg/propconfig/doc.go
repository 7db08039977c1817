// Package propconfig loads property declarations from YAML.
//
// A declaration is a property configuration plus optional initial values:
//
//	properties:
//	  - prop: HVAC_TEMPERATURE_SET   # well-known name or numeric ID
//	    access: read_write           # read | write | read_write
//	    changeMode: on_change        # static | on_change | continuous
//	    areas:
//	      - {areaId: 1, minFloat: 16, maxFloat: 28}
//	      - {areaId: 4, minFloat: 16, maxFloat: 28}
//	    areaValues:
//	      - {areaId: 1, value: {float: [21]}}
//	      - {areaId: 4, value: {float: [22]}}
//
// [Default] returns the built-in declarations used when no file is given.
package propconfig

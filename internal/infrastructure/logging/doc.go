// Package logging configures log/slog for the tracker service.
//
// Records are JSON by default and text when logging.format is "text". Every
// record carries service and version; components add their own tag with
// Component:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, file
//	  file:
//	    path: "/var/log/graytrack/graytrack.log"
//
// Never log the portal password or tokens. Phone numbers and coordinates are
// personal data and only appear at debug level.
package logging

// Package calibration computes calibration factors and runs the guided
// calibration procedure: tare the empty scale, weigh a reference of known
// mass, send the corrected factor.
package calibration

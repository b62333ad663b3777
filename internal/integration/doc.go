// Package integration describes the device classes that can be set up
// through Bluetooth discovery.
//
// A Profile is the signature validator for one integration domain: it
// decides whether an advertisement belongs to the domain and derives the
// human title of the config entry created for it.
//
// The built-in "thermopro" profile matches ThermoPro hygrometers, whose
// local names look like "TP357 (2142)". Further profiles are declared in
// the integrations section of config.yaml.
package integration

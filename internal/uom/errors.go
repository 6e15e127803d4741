package uom

import "errors"

var (
	// ErrIncompatibleUnits is returned when two units have different base units.
	ErrIncompatibleUnits = errors.New("uom: incompatible units")
	// ErrNilUnit is returned when a conversion needs a unit that is absent.
	ErrNilUnit = errors.New("uom: nil unit")
	// ErrUnknownUnit is returned when a registry lookup fails.
	ErrUnknownUnit = errors.New("uom: unknown unit")
	// ErrInvalidFactor is returned when a unit conversion factor is not positive.
	ErrInvalidFactor = errors.New("uom: conversion factor must be positive")
)

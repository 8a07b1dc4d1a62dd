package main

import "github.com/bz2vsr/bz2-watchbot/internal/paths"

// ///////////////////////////////////////////////
// Path Aliases
// ///////////////////////////////////////////////

// DataPaths aliases [paths.DataDir] into the main package so daemon code can
// use the path helpers without qualifying the internal package name. No build
// constraints: path construction is platform-independent.
type DataPaths = paths.DataDir

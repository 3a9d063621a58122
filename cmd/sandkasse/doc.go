// Command sandkasse evaluates a script in a sandbox session with a few host
// functions registered:
//
//	hello()      prints a greeting on the host
//	add(a, b)    adds two integers
//	upper(s)     upper-cases a string
//
// Usage:
//
//	sandkasse -type int -e 'add(40, 2)'
//	sandkasse -type string script.js
//
// Limits and logging are configured through SANDKASSE_* and LOG_* environment
// variables or the file named by SANDKASSE_CONFIG.
package main

// Package traipse provides hierarchical route transition machinery.
//
// The core code is in package 'core', a route table lives in
// 'recognize', and a service that hosts crews of navigators is in
// `cmd`.
//
// See https://github.com/Comcast/traipse/blob/master/README.md for more.
package traipse

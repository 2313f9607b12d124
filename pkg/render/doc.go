// Package render produces the HTML pages served to browsers: login,
// error, dashboard, tables, declarative forms and markdown help pages.
package render

// Package gslides wraps the Google Drive and Slides APIs with the four
// operations needed to render a personalized copy of a slide template:
// duplicate, replace text, export the first page and delete.
package gslides

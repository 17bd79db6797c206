// Package server exposes the raster filter engine over HTTP.
//
// Images are uploaded, filtered and downloaded by id. Each filter request
// applies exactly one operation to the current version of an image and
// stores the result as the new current version; the uploaded original is
// kept so a reset can return to it.
//
// # Routes
//
//	GET    /                                   service banner
//	GET    /healthz                            liveness
//	GET    /filters                            filter catalogue
//	POST   /images                             upload, id assigned
//	PUT    /images/{id}                        upload under a caller id
//	GET    /images/{id}                        download (?format=png|jpeg|bmp)
//	DELETE /images/{id}                        forget an image
//	GET    /images/{id}/info                   size, format, version
//	POST   /images/{id}/reset                  drop the processed version
//	POST   /images/{id}/filters/{name}[/{v}]   apply a filter (?value= also works)
//	GET    /images/{id}/sample?x=&y=           color at a pixel
//	GET    /images/{id}/stats?count=           mean and dominant colors
//	GET    /images/{id}/crop                   region as base64 PNG
//
// Uploads are raw bodies or multipart forms with a "file" field.
//
// # Legacy Routes
//
// The single-image routes POST /uploadImage, GET /getImage and
// POST /<legacy-name>[/{value}] (e.g. /brightness/40, /gaussianblur/5,
// /detectEdge) act on the image id "default" and answer in plain text.
//
// # Errors
//
// JSON routes report failures as {"error": "..."}:
//   - 400: malformed id, parameter, region or image data
//   - 404: unknown image or filter
//   - 413: upload body or pixel count over the configured limit
//   - 503: filter deadline exceeded; the image is left unchanged
//   - 500: anything else
package server

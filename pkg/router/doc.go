// Package router implements the EdgeUp offline cache router.
//
// The router sits between page clients and the EdgeUp origin. Every
// same-origin GET request is classified and resolved against two cache
// namespaces with a per-class strategy:
//
//   - API requests (/api/...) go network first. Allowlisted endpoints are
//     stored in the dynamic namespace and served from it when offline.
//   - Static assets (any path with a dot) are served cache first from the
//     static namespace.
//   - Pages go network first and fall back to their dynamic copy.
//
// When both network and cache fail, navigations receive the cached home
// page or an embedded offline page, images receive a placeholder graphic
// and everything else receives a 503.
//
// Lifecycle events (install, activate), control messages, push
// notifications and background sync are exposed as methods and through
// the generic Handle dispatcher:
//
//	r, err := router.New(router.DefaultConfig(origin), storage, originClient)
//	if err != nil {
//		return err
//	}
//	if err := r.Start(ctx); err != nil {
//		return err // install failed, previous version stays in charge
//	}
//	http.ListenAndServe(":8080", r)
package router

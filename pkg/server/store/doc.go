// Package store defines the persistence contract used by the HTTP layer.
//
// Every request runs inside one Store transaction. The Session handed to
// the callback resolves entities under the visibility of its actor,
// creates and updates them through the entity manager, and exposes the
// secret store bound to the same transaction.
//
// # Usage
//
//	err := st.Transaction(ctx, user, func(s store.Session) error {
//	    device, err := s.Fetch(ctx, "device", "R1")
//	    if err != nil {
//	        if errors.Is(err, store.ErrNotFound) {
//	            // Handle not found
//	        }
//	        return err
//	    }
//	    return s.Save(ctx, device)
//	})
//
// The gorm subpackage holds the implementation.
package store

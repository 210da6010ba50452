// Package pagination accumulates the photo catalog page by page.
//
// Controller owns one gallery's state: the ordered, de-duplicated item
// list, the last loaded page and whether the catalog has more. Loads are
// single-flight. A LoadNext issued while a load is running joins it and
// returns its result, so pages are requested and applied in strictly
// increasing order.
//
//	ctrl := pagination.New(picsumClient, pagination.Config{PageSize: 20})
//	defer ctrl.Close()
//
//	if err := ctrl.LoadNext(ctx); err != nil {
//		// ctrl.Snapshot().Status == pagination.StatusErrored
//	}
//
// State machine:
//
//	idle      --LoadNext-->           loading
//	loading   --full page-->          idle       (Page++)
//	loading   --short page-->         exhausted  (terminal until Refresh)
//	loading   --error-->              errored    (Items, Page, HasMore kept)
//	errored   --LoadNext/Refresh-->   loading
//
// Scanner walks list pages in increasing order for single-photo lookups.
// Pages are fetched a window at a time in parallel and visited in order.
package pagination

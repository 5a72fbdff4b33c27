// Package singular drives Singular.Live graphics compositions from
// timeline snapshots.
//
// Each timeline layer mapped to a singular_live device names one
// composition. An object on that layer with content type "composition"
// makes the composition visible with its control node payload; when the
// object goes away the composition is animated out.
//
// Commands are PUT to the Singular.Live control API one at a time, in
// order. The device has no connection probe, so its status is always ok
// once initialised.
package singular

// Package scene3d is the 3D render backend.
//
// The renderer keeps a small scene graph (track, checkpoint markers, one
// node per vehicle) and a chase camera that eases toward a point behind and
// above the first vehicle in the race. Markers spin and bob on a shared
// animation clock that only runs while a vehicle is being followed.
//
// Each frame is projected with a perspective camera and handed to a
// Presenter as screen-space road segments and depth-sorted sprites, so the
// package has no drawing dependency of its own; canvas2d provides an ebiten
// presenter.
package scene3d

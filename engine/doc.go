// Package engine implements the multi-stem playback engine: per-stem
// channels with gain and mute/solo resolution, an audio graph that sums
// channel outputs into a master bus, a race-free transport state machine,
// and block-based rendering through per-channel and master effect chains.
//
// The engine splits work between two sides. The render side (Render) is
// meant to be driven by a platform audio callback at a fixed block size;
// it never locks, blocks, or allocates. The control side (Play, Pause,
// Stop, Seek, SetChannelState, SetEffectParameter) returns immediately;
// its effects are observed on the next rendered block via atomic snapshot
// handoff. A monotonic generation counter tags every asynchronous
// completion so stale events from a superseded play/seek are discarded.
package engine

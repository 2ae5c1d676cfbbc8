/*
Package ports defines the driven ports (interfaces) of the call gate.

These interfaces decouple the scheduler and the dialogue sequencer from the game around
them: the save data, the desktop shell, the call surface and the cosmetic effects are all
collaborators reached through a port.

# Key Interfaces

  - FlagStore: persistent key/value flags shared with every app UI.
  - GraphLoader: resolves dialogue graphs by id (built-in, YAML/JSON files, Loam).
  - WindowOwner: reports whether a window or modal is open, for idle gating.
  - Presenter: the incoming-call surface that plays media and shows beats.
  - Shaker / CuePlayer: fire-and-forget cosmetic effects.
  - DistributedLocker: serializes the call slot across processes sharing one save.
*/
package ports

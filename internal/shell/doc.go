// Package shell is the Birch host shell: the capability providers plugins
// register against, and the Shell that drives the plugin registry.
//
// The providers back the capability surface:
//
//   - CommandTable: the editor command table and command palette search
//   - LanguageTable: language definitions, looked up by id, alias, or extension
//   - NotificationSink: dismissible user notifications
//   - SidebarHost: sidebar views in registration order
//
// Surface composes them into an api.Capabilities. Every record is
// attributed to the plugin that registered it, so Surface.Revoke can remove
// a plugin's registrations when it is unloaded.
//
// Shell owns one Surface and one plugin.Registry. It loads plugins found
// by the loader, skips those disabled in the configuration, reloads them
// when their files change, and posts a notification whenever a plugin
// fails to activate or deactivate.
package shell

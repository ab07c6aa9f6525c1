// Package lua runs Birch plugins written in Lua.
//
// Scripts run in a sandboxed gopher-lua state: only the base, string,
// table, and math libraries are available, code loading functions are
// removed, print writes to the plugin logger, and every call into Lua is
// bounded by an execution timeout.
//
// A plugin script defines a global activate function that receives the
// birch module, and optionally a deactivate function:
//
//	function activate(birch)
//	    birch.editor.add_command("hello.say", function()
//	        birch.ui.notify("Hello from " .. birch.id)
//	    end, "Say Hello")
//
//	    birch.editor.register_language{
//	        id = "toml",
//	        extensions = { ".toml" },
//	    }
//
//	    birch.ui.register_sidebar_view("hello.view", "Hello")
//	end
//
//	function deactivate()
//	end
//
// NewDescriptor wraps a script as a plugin.Descriptor for the registry.
// Registrations are attributed to the script's plugin id.
package lua

package build

// desktopPackages maps each desktop environment to the Debian package set
// installed alongside the user's own selection.
var desktopPackages = map[DesktopManager][]string{
	DesktopKDE: {
		"kde-plasma-desktop",
		"sddm",
		"plasma-nm",
		"plasma-pa",
	},
	DesktopGNOME: {
		"gnome-core",
		"gdm3",
		"gnome-terminal",
		"nautilus",
	},
	DesktopXFCE: {
		"xfce4",
		"xfce4-goodies",
		"lightdm",
		"xfce4-terminal",
	},
	DesktopLXDE: {
		"lxde",
		"lightdm",
		"lxterminal",
	},
	DesktopCinnamon: {
		"cinnamon-desktop-environment",
		"lightdm",
		"gnome-terminal",
	},
	DesktopMATE: {
		"mate-desktop-environment",
		"lightdm",
		"mate-terminal",
	},
	DesktopBudgie: {
		"budgie-desktop",
		"lightdm",
		"gnome-terminal",
	},
	DesktopI3: {
		"i3",
		"lightdm",
		"i3status",
		"dmenu",
		"xterm",
	},
	DesktopNone: {},
}

// DesktopPackages returns the package set for the given desktop environment.
// Unknown values get an empty set, matching the minimal/server choice.
func DesktopPackages(dm DesktopManager) []string {
	pkgs, ok := desktopPackages[dm]
	if !ok {
		return nil
	}
	return append([]string(nil), pkgs...)
}

package bot

import (
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/clanbot/clanbot/common"
	"github.com/karlseguin/ccache"
)

const guildRolesCacheDuration = time.Minute

// OfficerResolver decides whether a guild member counts as an officer: administrators and members holding a role
// whose name is in RoleNames
type OfficerResolver struct {
	Session   Session
	RoleNames []string

	rolesCache *ccache.Cache
}

func NewOfficerResolver(session Session, roleNames []string) *OfficerResolver {
	return &OfficerResolver{
		Session:    session,
		RoleNames:  roleNames,
		rolesCache: ccache.New(ccache.Configure().MaxSize(1000)),
	}
}

// IsOfficer resolves member's officer status in guildID
func (o *OfficerResolver) IsOfficer(guildID string, member *discordgo.Member) (bool, error) {
	if member == nil {
		return false, nil
	}

	if member.Permissions&discordgo.PermissionAdministrator == discordgo.PermissionAdministrator {
		return true, nil
	}

	item, err := o.rolesCache.Fetch(guildID, guildRolesCacheDuration, func() (interface{}, error) {
		return o.Session.GuildRoles(guildID)
	})
	if err != nil {
		return false, errors.WithMessage(err, "guild roles")
	}

	return HasOfficerRole(member, item.Value().([]*discordgo.Role), o.RoleNames), nil
}

// HasOfficerRole returns true if the member has one of the roles named in officerRoleNames
func HasOfficerRole(member *discordgo.Member, guildRoles []*discordgo.Role, officerRoleNames []string) bool {
	for _, r := range guildRoles {
		if !common.ContainsStringSliceFold(officerRoleNames, r.Name) {
			continue
		}

		for _, memberRole := range member.Roles {
			if memberRole == r.ID {
				return true
			}
		}
	}

	return false
}

// HasRole returns true if the member has the role with roleID
func HasRole(member *discordgo.Member, roleID int64) bool {
	if member == nil {
		return false
	}

	for _, v := range member.Roles {
		if MustParseID(v) == roleID {
			return true
		}
	}

	return false
}
